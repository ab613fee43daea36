// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package linefeed

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/ninibe/linefeed/lineindex"
)

// LFError is a known linefeed error with an associated status code and a
// fixed plain-text response body.
type LFError interface {
	Error() string
	String() string
	StatusCode() int
	Body() string
}

type lfError struct {
	status int
	err    string
	body   string
}

func newErr(status int, message, body string) LFError {
	return &lfError{status, message, body}
}

// StatusCode used by the http transport.
func (e *lfError) StatusCode() int {
	return e.status
}

// Body is the exact response body served for this error.
func (e *lfError) Body() string {
	return e.body
}

// Error returns the error string.
func (e *lfError) Error() string {
	return e.err
}

// String implements the Stringer interface for LFError.
func (e *lfError) String() string {
	return fmt.Sprintf("lferror: %s", e.err)
}

var (
	// ErrUnknown is returned when an underlying standard Go error reaches the user.
	ErrUnknown = newErr(http.StatusInternalServerError, "linefeed: unknown error", "Internal server error")

	// ErrInvalidLineIndex is returned when the requested line number can not be parsed.
	ErrInvalidLineIndex = newErr(http.StatusBadRequest, "linefeed: invalid line index",
		"Invalid line index. Must be a positive integer.\n")

	// ErrLineOutOfRange is returned when the requested line is past the end of
	// the file. The 413 status is non-standard for this but is kept for
	// compatibility with existing clients of the previous implementation.
	ErrLineOutOfRange = newErr(http.StatusRequestEntityTooLarge, "linefeed: line out of range",
		"Requested line is beyond the end of the file.\n")

	// ErrNotFound is returned for any route other than the line endpoint.
	ErrNotFound = newErr(http.StatusNotFound, "linefeed: not found", "Not Found\n")

	// ErrReadFailed is returned when the data file read behind a valid line range fails.
	ErrReadFailed = newErr(http.StatusInternalServerError, "linefeed: data read failed", "Internal server error")
)

// ErrPathOutsideRoot is returned when the data path escapes the working
// directory. It is always fatal at startup.
var ErrPathOutsideRoot = errors.New("linefeed: data path escapes the working directory")

var errmap = map[error]LFError{
	lineindex.ErrOutOfRange:   ErrLineOutOfRange,
	lineindex.ErrCorruptIndex: ErrUnknown,
}

// ExtErr maps external errors, mostly lineindex errors, to LFErrors.
func ExtErr(err error) LFError {

	// If it's not really external return same error
	if err, ok := err.(LFError); ok {
		return err
	}

	// map to corresponding linefeed error
	if lferr, ok := errmap[err]; ok {
		return lferr
	}

	log.Printf("error: unmapped error: %s", err.Error())

	// Error is unknown
	return ErrUnknown
}

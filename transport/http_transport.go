// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package transport exposes a LineFile over HTTP.
// The surface is a single route, GET /lines/:n, everything else is a 404.
package transport

import (
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/comail/go-uuid/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/ninibe/linefeed"
)

// NewHTTPTransport sets up an HTTP interface around a LineFile.
func NewHTTPTransport(lf *linefeed.LineFile) *HTTPTransport {
	ht := &HTTPTransport{
		lf:     lf,
		access: log.New(io.Discard, "", 0),
	}

	router := httprouter.New()
	router.GET("/lines/:n", ht.handleGetLine)

	// every unknown path or method is a plain 404
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleOPTIONS = false
	router.HandleMethodNotAllowed = false
	router.NotFound = http.HandlerFunc(ht.handleNotFound)
	ht.router = router

	return ht
}

// HTTPTransport implements an HTTP server around a LineFile.
type HTTPTransport struct {
	lf     *linefeed.LineFile
	router *httprouter.Router
	access *log.Logger
}

// SetAccessLog directs the per-request log to w.
// Entries carry a request id, the client address, method, path, status and
// either the body length or the reason the request was rejected.
func (ht *HTTPTransport) SetAccessLog(w io.Writer) {
	ht.access = log.New(w, "", log.LstdFlags)
}

// ServeHTTP implements the http.Handler interface around a LineFile.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

func (ht *HTTPTransport) handleGetLine(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reqID := uuid.NewRandom().String()

	n, err := strconv.ParseUint(ps.ByName("n"), 10, 64)
	if err != nil {
		ht.reject(w, r, reqID, linefeed.ErrInvalidLineIndex)
		return
	}

	data, err := ht.lf.Line(n)
	if err != nil {
		ht.reject(w, r, reqID, linefeed.ExtErr(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	written, err := w.Write(data)
	if err != nil {
		log.Printf("error: failed to write HTTP response %s", err)
	}

	ht.access.Printf("%s %s %s %s %d %d", reqID, r.RemoteAddr, r.Method, r.URL.Path, http.StatusOK, written)
}

func (ht *HTTPTransport) handleNotFound(w http.ResponseWriter, r *http.Request) {
	ht.reject(w, r, uuid.NewRandom().String(), linefeed.ErrNotFound)
}

func (ht *HTTPTransport) reject(w http.ResponseWriter, r *http.Request, reqID string, lferr linefeed.LFError) {
	TextErrorResponse(w, lferr)
	ht.access.Printf("%s %s %s %s %d %q", reqID, r.RemoteAddr, r.Method, r.URL.Path, lferr.StatusCode(), lferr.Error())
}

// TextErrorResponse is a convenience function to transform errors into plain-text HTTP responses
func TextErrorResponse(w http.ResponseWriter, err error) {
	e := linefeed.ExtErr(err)

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(e.StatusCode())
	if _, werr := io.WriteString(w, e.Body()); werr != nil {
		log.Printf("error: failed to write HTTP response %s", werr)
	}

	level := "warn"
	if e.StatusCode() >= 500 {
		level = "error"
	}

	log.Printf("%s: status %d -> %s", level, e.StatusCode(), e)
}

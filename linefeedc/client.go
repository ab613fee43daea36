// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package linefeedc is a small client for the linefeed HTTP interface.
package linefeedc

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ninibe/linefeed"
)

// NewClient returns a linefeed client connecting to a given server address.
func NewClient(addr string) *Client {
	return &Client{
		addr:  addr,
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

// Client is a linefeed client.
type Client struct {
	addr  string
	httpc *http.Client
}

// GetLine fetches line n and returns its raw bytes, trailing LF included
// when the file has one there.
func (c *Client) GetLine(n uint64) ([]byte, error) {
	resp, err := c.httpc.Get(c.lineURL(strconv.FormatUint(n, 10)))
	if err != nil {
		return nil, err
	}

	defer logClose(resp.Body)
	if resp.StatusCode == http.StatusOK {
		return io.ReadAll(resp.Body)
	}

	return nil, decodeError(resp)
}

// GetLineString is GetLine with the trailing LF stripped, for callers that
// care about the content rather than the exact bytes.
func (c *Client) GetLineString(n uint64) (string, error) {
	b, err := c.GetLine(n)
	if err != nil {
		return "", err
	}

	return strings.TrimSuffix(string(b), "\n"), nil
}

func (c *Client) lineURL(n string) string {
	u := url.URL{
		Scheme: "http",
		Host:   c.addr,
		Path:   "/lines/" + n,
	}

	return u.String()
}

// decodeError turns a non-200 response into the matching linefeed error,
// falling back to a plain error carrying the status and body.
func decodeError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return linefeed.ErrInvalidLineIndex
	case http.StatusRequestEntityTooLarge:
		return linefeed.ErrLineOutOfRange
	case http.StatusNotFound:
		return linefeed.ErrNotFound
	}

	return fmt.Errorf("linefeedc: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// logClose calls Close on the subject and logs the error if any
// this is handy to call Close on defer
func logClose(c io.Closer) {
	err := c.Close()
	if err != nil {
		log.Printf("error: %s", err)
	}
}

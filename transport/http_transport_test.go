// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package transport_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ninibe/linefeed"
	"github.com/ninibe/linefeed/transport"
)

func newTestServer(t *testing.T, content string) (*httptest.Server, *bytes.Buffer) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.txt")
	if err := os.WriteFile(path, []byte(content), 0666); err != nil {
		t.Fatal(err)
	}

	if _, _, err := linefeed.PrepareIndex(path); err != nil {
		t.Fatal(err)
	}

	lf, err := linefeed.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	ht := transport.NewHTTPTransport(lf)
	var access bytes.Buffer
	ht.SetAccessLog(&access)

	srv := httptest.NewServer(ht)
	t.Cleanup(func() {
		srv.Close()
		_ = lf.Close()
	})

	return srv, &access
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string, http.Header) {
	t.Helper()

	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	return resp.StatusCode, string(body), resp.Header
}

func TestHandlerResponses(t *testing.T) {
	srv, _ := newTestServer(t, "a\nbb\nccc\n")

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/lines/0", 200, "a\n"},
		{"/lines/1", 200, "bb\n"},
		{"/lines/2", 200, "ccc\n"},
		{"/lines/3", 413, "Requested line is beyond the end of the file.\n"},
		{"/lines/-1", 400, "Invalid line index. Must be a positive integer.\n"},
		{"/lines/abc", 400, "Invalid line index. Must be a positive integer.\n"},
		{"/lines/", 404, "Not Found\n"},
		{"/lines/0/extra", 404, "Not Found\n"},
		{"/healthz", 404, "Not Found\n"},
		{"/", 404, "Not Found\n"},
	}

	for _, tt := range tests {
		status, body, header := get(t, srv, tt.path)
		if status != tt.status {
			t.Errorf("GET %s: status %d expected %d", tt.path, status, tt.status)
		}
		if body != tt.body {
			t.Errorf("GET %s: body %q expected %q", tt.path, body, tt.body)
		}
		if ct := header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Errorf("GET %s: Content-Type %q expected text/plain", tt.path, ct)
		}
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, "a\n")

	resp, err := http.Post(srv.URL+"/lines/0", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 404 {
		t.Errorf("POST /lines/0: status %d expected 404", resp.StatusCode)
	}
}

func TestHandlerEmptyFile(t *testing.T) {
	srv, _ := newTestServer(t, "")

	status, body, _ := get(t, srv, "/lines/0")
	if status != 413 {
		t.Errorf("GET /lines/0 on empty file: status %d expected 413", status)
	}
	if body != "Requested line is beyond the end of the file.\n" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestHandlerAccessLog(t *testing.T) {
	srv, access := newTestServer(t, "a\nbb\n")

	if st, _, _ := get(t, srv, "/lines/1"); st != 200 {
		t.Fatalf("unexpected status %d", st)
	}
	if st, _, _ := get(t, srv, "/lines/99"); st != 413 {
		t.Fatalf("unexpected status %d", st)
	}

	logged := access.String()
	if !strings.Contains(logged, "/lines/1 200 3") {
		t.Errorf("access log missing served entry:\n%s", logged)
	}
	if !strings.Contains(logged, "413") {
		t.Errorf("access log missing rejection entry:\n%s", logged)
	}
}

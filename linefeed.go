// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package linefeed serves single lines of a very large immutable text file
// by zero-based line number, in constant time, without ever holding the
// file in memory. It is usually wrapped with an HTTP transport.
package linefeed

import (
	"io"
	"log"
	"os"

	"github.com/ninibe/bigduration"

	"github.com/ninibe/linefeed/lineindex"
)

// Option is the type of function used to set internal parameters.
type Option func(*LineFile)

// MonitorInterval defines the interval at which the staleness monitor
// re-stats the data file. Zero leaves the monitor off.
func MonitorInterval(interval bigduration.BigDuration) Option {
	return func(lf *LineFile) {
		lf.monInterval = interval
	}
}

// LineFile is a per-process handle over one data file and its offset index.
// It owns a read-only descriptor of the data file and a read-only mapping of
// the index, both opened by this process. After startup nothing in a LineFile
// mutates, so every method is safe for concurrent use.
type LineFile struct {
	path        string
	data        *os.File
	index       *lineindex.Index
	monInterval bigduration.BigDuration
}

// PrepareIndex is the master-side startup step: it makes sure a valid index
// exists for dataPath, rebuilding it atomically when stale. It returns the
// number of indexed lines and whether a rebuild took place. Workers forked
// afterwards only ever open the finished index.
func PrepareIndex(dataPath string) (lines uint64, rebuilt bool, err error) {
	return lineindex.EnsureIndex(dataPath)
}

// Open is the per-worker bootstrap. It opens the data file and maps the
// index fresh in the calling process; mappings or descriptors inherited
// across a fork are never reused. The caller is expected to have run
// PrepareIndex in the master first.
func Open(dataPath string, opts ...Option) (*LineFile, error) {
	data, err := os.Open(dataPath)
	if err != nil {
		return nil, err
	}

	index, err := lineindex.OpenIndex(dataPath)
	if err != nil {
		logClose(data)
		return nil, err
	}

	lf := &LineFile{
		path:  dataPath,
		data:  data,
		index: index,
	}

	for _, opt := range opts {
		opt(lf)
	}

	if mi := lf.monInterval.Duration(); mi > 0 {
		sm := &StalenessMonitor{lf: lf}
		go sm.start(mi)
	}

	return lf, nil
}

// Path returns the path of the data file.
func (lf *LineFile) Path() string { return lf.path }

// Len returns the total number of indexed lines.
func (lf *LineFile) Len() uint64 { return lf.index.Len() }

// DataSize returns the size in bytes of the data file captured at open time.
func (lf *LineFile) DataSize() uint64 { return lf.index.DataSize() }

// Index exposes the underlying index handle, mostly for integrity checks.
func (lf *LineFile) Index() *lineindex.Index { return lf.index }

// Line returns the exact bytes of line n, including the trailing LF when the
// file has one there. The read goes through ReadAt so concurrent requests
// never contend on a seek offset. ErrLineOutOfRange is returned for any n
// past the last line, ErrReadFailed when the data file read comes up short.
func (lf *LineFile) Line(n uint64) ([]byte, error) {
	start, end, err := lf.index.Range(n)
	if err != nil {
		return nil, ExtErr(err)
	}

	buf := make([]byte, end-start)
	read, err := lf.data.ReadAt(buf, int64(start))
	if read < len(buf) {
		log.Printf("error: short read on line %d: read %d of %d bytes: %s",
			n, read, len(buf), err)
		return nil, ErrReadFailed
	}

	return buf, nil
}

// Close releases the index mapping and both descriptors.
func (lf *LineFile) Close() error {
	if err := lf.index.Close(); err != nil {
		logClose(lf.data)
		return err
	}

	return lf.data.Close()
}

// logClose calls Close on the subject and logs the error if any
// this is handy to call Close on defer
func logClose(c io.Closer) {
	err := c.Close()
	if err != nil {
		log.Printf("error: %s", err)
	}
}

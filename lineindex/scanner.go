// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package lineindex

import "io"

// scanBufSize is the block size used to sweep the data file for line breaks.
const scanBufSize = 256 * 1024

// EmitFunc receives the byte offset at which a line starts.
// Returning an error aborts the scan.
type EmitFunc func(offset uint64) error

// Scan sweeps r from the beginning emitting the start offset of every line.
// A line is any byte run terminated by LF, or the trailing run after the last
// LF when the stream does not end in one. Bytes are never inspected beyond
// the LF check, so the scan is safe for any content.
//
// Scan returns the number of lines emitted. An empty stream emits nothing.
func Scan(r io.Reader, emit EmitFunc) (lines uint64, err error) {
	var off uint64
	atStart := true

	buf := make([]byte, scanBufSize)
	for {
		n, rerr := r.Read(buf)
		for i := 0; i < n; i++ {
			if atStart {
				if err = emit(off + uint64(i)); err != nil {
					return lines, err
				}
				lines++
				atStart = false
			}
			if buf[i] == '\n' {
				atStart = true
			}
		}
		off += uint64(n)

		if rerr == io.EOF {
			return lines, nil
		}
		if rerr != nil {
			return lines, rerr
		}
	}
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package lineindex maintains a packed offset index over the lines of a
// large append-only data file and offers constant time lookup of the byte
// range of any line through a read-only memory mapping of that index.
//
// The index file is a bare array of little-endian uint64 values, one per
// line, holding the byte offset at which the line starts. There is no
// header and no framing: file size divided by eight is the line count.
package lineindex

import (
	"encoding/binary"
	"errors"
	"log"
	"os"

	"github.com/tysonmote/gommap"
)

// Logger is the logger instance used by lineindex in case of error.
var Logger = log.New(os.Stderr, "LINEINDEX ", log.LstdFlags)

var enc = binary.LittleEndian

var (
	// ErrBuildInProgress is returned when another process holds the temporary index file.
	ErrBuildInProgress = errors.New("lineindex: index build already in progress")

	// ErrCorruptIndex is returned when the index file size is not a multiple of the entry width.
	ErrCorruptIndex = errors.New("lineindex: corrupt index")

	// ErrOutOfRange is returned on lookups beyond the last indexed line.
	ErrOutOfRange = errors.New("lineindex: line out of range")
)

var (
	mmapProtFlags = gommap.PROT_READ
	mmapMapFlags  = gommap.MAP_SHARED
)

// Index is an immutable view of the offset index of one data file.
// The whole index file is memory mapped read-only for the lifetime of the
// Index, lookups touch the mapping without any locking. An Index is owned by
// the process that opened it and must be re-opened, never inherited, after a
// fork.
type Index struct {
	file     *os.File
	mmap     gommap.MMap
	lines    uint64
	dataSize uint64
}

// OpenIndex maps the index of dataPath into memory. The data file is only
// stat'ed to capture its current size, which bounds the byte range of the
// last line. Empty data files have an empty index and get no mapping at all.
func OpenIndex(dataPath string) (*Index, error) {
	di, err := os.Stat(dataPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(IndexPath(dataPath))
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		logClose(f)
		return nil, err
	}

	if fi.Size()%offsetWidth != 0 {
		logClose(f)
		return nil, ErrCorruptIndex
	}

	ix := &Index{
		file:     f,
		lines:    uint64(fi.Size()) / offsetWidth,
		dataSize: uint64(di.Size()),
	}

	if ix.lines == 0 {
		return ix, nil
	}

	ix.mmap, err = gommap.Map(f.Fd(), mmapProtFlags, mmapMapFlags)
	if err != nil {
		Logger.Printf("error: can't mmap index: %s", err)
		logClose(f)
		return nil, err
	}

	return ix, nil
}

// Len returns the total number of indexed lines.
func (ix *Index) Len() uint64 { return ix.lines }

// DataSize returns the size in bytes of the data file captured at open time.
func (ix *Index) DataSize() uint64 { return ix.dataSize }

// Offset returns the byte offset at which line i starts.
// Callers must bound-check i against Len.
func (ix *Index) Offset(i uint64) uint64 {
	return enc.Uint64(ix.mmap[i*offsetWidth : i*offsetWidth+offsetWidth])
}

// Range returns the byte range [start, end) occupied by line i in the data
// file, including the trailing LF when the line has one. The last line ends
// at the data file size. ErrOutOfRange is returned when i is not indexed.
func (ix *Index) Range(i uint64) (start, end uint64, err error) {
	if i >= ix.lines {
		return 0, 0, ErrOutOfRange
	}

	start = ix.Offset(i)
	if i+1 < ix.lines {
		end = ix.Offset(i + 1)
	} else {
		end = ix.dataSize
	}

	return start, end, nil
}

// Close drops the mapping and closes the underlying file.
// The Index must not be used afterwards.
func (ix *Index) Close() error {
	if ix.mmap != nil {
		if err := ix.mmap.UnsafeUnmap(); err != nil {
			Logger.Printf("error: unmap failed: %s", err)
		}
		ix.mmap = nil
	}

	return ix.file.Close()
}

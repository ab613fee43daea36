// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package lineindex

import (
	"bufio"
	"os"
	"path/filepath"
)

const (
	// IndexSuffix is appended to the data path to form the index path.
	IndexSuffix = ".index"
	// tmpSuffix marks an index build in progress.
	tmpSuffix = ".index.tmp"
)

// offsetWidth is the length in bytes of one index entry (a single LE uint64).
const offsetWidth = 8

// IndexPath returns the canonical index path for a given data path.
func IndexPath(dataPath string) string {
	return dataPath + IndexSuffix
}

func tmpPath(dataPath string) string {
	return dataPath + tmpSuffix
}

// Build scans the data file at dataPath and writes a new offset index next to
// it. The index is written to a temporary file created with O_EXCL and moved
// over the canonical path with a single rename, so concurrent readers holding
// a mapping of the previous index are never disturbed and no reader can ever
// observe a partial index. The exclusive create also serves as the guard
// against two processes building at once.
//
// On any error the temporary file is removed and the canonical index, if one
// exists, is left untouched. Build returns the number of lines indexed.
func Build(dataPath string) (lines uint64, err error) {
	data, err := os.Open(dataPath)
	if err != nil {
		return 0, err
	}
	defer logClose(data)

	tmp := tmpPath(dataPath)
	f, err := createTmp(tmp, dataPath)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	w := bufio.NewWriterSize(f, 1<<16)
	var entry [offsetWidth]byte

	lines, err = Scan(data, func(offset uint64) error {
		enc.PutUint64(entry[:], offset)
		_, werr := w.Write(entry[:])
		return werr
	})
	if err != nil {
		return 0, err
	}

	if err = w.Flush(); err != nil {
		return 0, err
	}

	if err = f.Sync(); err != nil {
		return 0, err
	}

	if err = f.Close(); err != nil {
		return 0, err
	}

	if err = os.Rename(tmp, IndexPath(dataPath)); err != nil {
		return 0, err
	}

	syncDir(filepath.Dir(dataPath))

	Logger.Printf("info: built index for %q with %d lines", dataPath, lines)
	return lines, nil
}

// createTmp creates the temporary index file exclusively. A leftover
// temporary file older than the data file belongs to a crashed build and is
// removed; a newer one means another process is building right now.
func createTmp(tmp, dataPath string) (*os.File, error) {
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
	if err == nil {
		return f, nil
	}
	if !os.IsExist(err) {
		return nil, err
	}

	ti, terr := os.Stat(tmp)
	di, derr := os.Stat(dataPath)
	if terr == nil && derr == nil && ti.ModTime().After(di.ModTime()) {
		return nil, ErrBuildInProgress
	}

	Logger.Printf("warn: removing stale temporary index %q", tmp)
	if rerr := os.Remove(tmp); rerr != nil && !os.IsNotExist(rerr) {
		return nil, rerr
	}

	return os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
}

// syncDir flushes the directory entry after the rename. Failure here only
// weakens crash durability, the rename itself has already happened.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		Logger.Printf("warn: can't open dir for sync: %s", err)
		return
	}

	if err = d.Sync(); err != nil {
		Logger.Printf("warn: dir sync failed: %s", err)
	}

	logClose(d)
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package linefeed

import (
	"log"
	"os"
	"time"
)

// StalenessMonitor periodically re-stats the data file and complains when it
// no longer matches what was indexed. The file is assumed immutable while
// the server runs, so serving continues against the pinned contents; the
// warning is the operator's cue to restart and rebuild.
type StalenessMonitor struct {
	lf *LineFile
}

func (sm *StalenessMonitor) start(interval time.Duration) {
	size := sm.lf.DataSize()
	mtime, ok := sm.stat()
	if !ok {
		return
	}

	ticker := time.NewTicker(interval)
	for range ticker.C {
		log.Printf("trace: running staleness check")
		sm.check(size, mtime)
	}
}

func (sm *StalenessMonitor) check(size uint64, mtime time.Time) {
	defer func() {
		if err := recover(); err != nil {
			log.Printf("alert: staleness check failed: %s", err)
		}
	}()

	fi, err := os.Stat(sm.lf.Path())
	if err != nil {
		log.Printf("error: staleness check can't stat %q: %s", sm.lf.Path(), err)
		return
	}

	if uint64(fi.Size()) != size || fi.ModTime().After(mtime) {
		log.Printf("warn: data file %q changed since it was indexed, serving stale contents until restart", sm.lf.Path())
	}
}

func (sm *StalenessMonitor) stat() (mtime time.Time, ok bool) {
	fi, err := os.Stat(sm.lf.Path())
	if err != nil {
		log.Printf("error: staleness monitor disabled, can't stat %q: %s", sm.lf.Path(), err)
		return mtime, false
	}

	return fi.ModTime(), true
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package lineindex

import "os"

// Fresh reports whether the on-disk index for dataPath can be reused.
// An index is reusable iff it exists, is non-empty, has a well-formed size
// and is at least as recent as the data file. A missing data file is an
// error, the caller decides how fatal that is.
func Fresh(dataPath string) (bool, error) {
	di, err := os.Stat(dataPath)
	if err != nil {
		return false, err
	}

	ii, err := os.Stat(IndexPath(dataPath))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if ii.Size() == 0 || ii.Size()%offsetWidth != 0 {
		return false, nil
	}

	return !ii.ModTime().Before(di.ModTime()), nil
}

// EnsureIndex makes sure a valid index exists for dataPath, rebuilding it
// when the freshness check fails. It returns the number of indexed lines and
// whether a rebuild took place. This is the master-side startup step, workers
// only ever open the finished index.
func EnsureIndex(dataPath string) (lines uint64, rebuilt bool, err error) {
	ok, err := Fresh(dataPath)
	if err != nil {
		return 0, false, err
	}

	if ok {
		ii, err := os.Stat(IndexPath(dataPath))
		if err != nil {
			return 0, false, err
		}

		lines = uint64(ii.Size()) / offsetWidth
		Logger.Printf("info: reusing index for %q with %d lines", dataPath, lines)
		return lines, false, nil
	}

	lines, err = Build(dataPath)
	return lines, true, err
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package lineindex

import (
	"context"
	"fmt"
)

const errLimit = 1000

// IntegrityError describes a single inconsistency found in an index.
type IntegrityError struct {
	Entry  uint64 `json:"entry"`
	Offset uint64 `json:"offset"`
	Reason string `json:"reason"`
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("lineindex: entry %d offset %d: %s", e.Entry, e.Offset, e.Reason)
}

// CheckIntegrity walks the whole mapped index validating its invariants:
// the first offset is zero, offsets grow strictly and none points past the
// end of the data file. The walk stops on context cancellation or once
// errLimit problems have been collected.
// Is recommended to pass a cancellable context since on very large indexes
// this operation can be slow.
func (ix *Index) CheckIntegrity(ctx context.Context) (errs []*IntegrityError) {
	var prev uint64

	for i := uint64(0); i < ix.lines; i++ {
		if len(errs) >= errLimit {
			return errs
		}

		select {
		case <-ctx.Done():
			return errs
		default:
		}

		off := ix.Offset(i)

		if i == 0 && off != 0 {
			errs = append(errs, &IntegrityError{
				Entry:  i,
				Offset: off,
				Reason: "first offset not zero",
			})
		}

		if i > 0 && off <= prev {
			errs = append(errs, &IntegrityError{
				Entry:  i,
				Offset: off,
				Reason: "offset not increasing",
			})
		}

		if off > ix.dataSize {
			errs = append(errs, &IntegrityError{
				Entry:  i,
				Offset: off,
				Reason: "offset beyond data file",
			})
		}

		prev = off
	}

	return errs
}

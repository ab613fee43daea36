// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package linefeed

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveDataPath resolves path and verifies it lives inside the working
// directory of the process. ErrPathOutsideRoot is returned otherwise and the
// caller is expected to treat that as fatal.
func ResolveDataPath(path string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	return resolveUnder(wd, path)
}

// resolveUnder resolves path, following symlinks, and checks containment in
// root at path component boundaries. A plain prefix comparison would accept
// siblings like /data-x next to /data, so the check goes through Rel.
func resolveUnder(root, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", ErrPathOutsideRoot
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathOutsideRoot
	}

	return resolved, nil
}

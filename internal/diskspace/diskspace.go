// Package diskspace reports free space on the filesystem holding a path.
// Used by the transfer engine to fail a batch up front instead of half-way
// through the last file.
package diskspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// InsufficientSpaceError reports that a destination filesystem cannot hold
// the bytes about to be written to it.
type InsufficientSpaceError struct {
	Path      string
	Required  int64
	Available int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient space at %s: need %d bytes, %d available",
		e.Path, e.Required, e.Available)
}

// Free returns the bytes available to the current user on the filesystem
// holding path. A path that does not exist yet is resolved through its
// nearest existing ancestor. 0 with a nil error means the answer is unknown;
// callers must treat unknown as "proceed and fail naturally".
func Free(path string) (int64, error) {
	dir := path
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return 0, nil
		}
		dir = parent
	}
	return free(dir)
}

// Check returns an *InsufficientSpaceError when the filesystem holding path
// cannot hold required more bytes. An unknown free-space answer passes.
func Check(path string, required int64) error {
	avail, err := Free(path)
	if err != nil || avail == 0 {
		return nil
	}
	if avail < required {
		return &InsufficientSpaceError{Path: path, Required: required, Available: avail}
	}
	return nil
}

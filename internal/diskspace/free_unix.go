//go:build !windows

package diskspace

import "golang.org/x/sys/unix"

func free(dir string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		// Network and virtual filesystems may refuse statfs; unknown, not
		// an error.
		return 0, nil
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

//go:build windows

package diskspace

import "golang.org/x/sys/windows"

func free(dir string) (int64, error) {
	var avail, total, totalFree uint64
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, nil
	}
	if err := windows.GetDiskFreeSpaceEx(p, &avail, &total, &totalFree); err != nil {
		return 0, nil
	}
	return int64(avail), nil
}

//go:build windows

package fsentry

import (
	"golang.org/x/sys/windows"
)

// diskFreeSpace returns the number of bytes free on the volume holding
// path.
func diskFreeSpace(path string) (int64, error) {
	var freeBytesAvailable uint64
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	if err := windows.GetDiskFreeSpaceEx(p, &freeBytesAvailable, nil, nil); err != nil {
		return 0, err
	}
	return int64(freeBytesAvailable), nil
}

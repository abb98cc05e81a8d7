//go:build windows

package sparse

import (
	"os"

	"golang.org/x/sys/windows"
)

// MarkSparse flags f as a sparse file via FSCTL_SET_SPARSE so that a later
// Truncate/resize past the current end-of-file does not zero-fill the
// interior. Mirrors the original D-LAN source's Q_OS_WIN32 branch of
// File::setFileAsSparse, which calls DeviceIoControl with the same code.
func MarkSparse(f *os.File) error {
	var bytesReturned uint32
	return windows.DeviceIoControl(
		windows.Handle(f.Fd()),
		windows.FSCTL_SET_SPARSE,
		nil, 0,
		nil, 0,
		&bytesReturned,
		nil,
	)
}

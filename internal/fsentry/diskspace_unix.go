//go:build !windows

package fsentry

import "syscall"

// diskFreeSpace returns the number of bytes free on the filesystem
// holding path.
func diskFreeSpace(path string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

//go:build !windows

package sparse

import "os"

// MarkSparse is a no-op on POSIX systems: the filesystem provides sparse
// semantics for files resized past their written extent by default.
func MarkSparse(f *os.File) error {
	return nil
}

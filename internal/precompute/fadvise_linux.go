//go:build linux

package precompute

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential hints that the database is read front to back, once per window.
// The hint is advisory; failures are ignored.
func adviseSequential(f *os.File, size int64) {
	_ = unix.Fadvise(int(f.Fd()), 0, size, unix.FADV_SEQUENTIAL)
}

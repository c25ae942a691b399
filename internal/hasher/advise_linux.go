//go:build linux

package hasher

import (
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

type fder interface {
	Fd() uintptr
}

// adviseSequential tells the kernel a full read is coming so it can read
// ahead aggressively. Partial reads are too short to benefit.
func adviseSequential(file afero.File, mode Mode) {
	if !mode.IsFull() {
		return
	}
	f, ok := file.(fder)
	if !ok {
		return
	}
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}

//go:build linux || freebsd

package atomicfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile flushes file data; fdatasync skips metadata that is not needed
// to read the contents back.
func syncFile(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return unix.Fsync(int(d.Fd()))
}

//go:build darwin

package atomicfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile asks for F_FULLFSYNC so the data reaches the platter rather than
// the drive cache; filesystems that reject it fall back to fsync.
func syncFile(f *os.File) error {
	fd := int(f.Fd())
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_FULLFSYNC, 0); err == nil {
		return nil
	}
	return unix.Fsync(fd)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return unix.Fsync(int(d.Fd()))
}

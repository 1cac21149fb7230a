// Package atomicfile replaces file contents so that other processes observe
// either the old bytes or the new ones, never a partial write.
//
// The new bytes go to a temporary file in the target's directory (so the
// rename stays on one filesystem), are flushed to stable storage, and the
// temporary file is then renamed over the target. Until the rename succeeds
// the target is untouched and any temporary file is removed.
package atomicfile

import (
	"log"
	"os"
	"path/filepath"

	"github.com/agilira/go-errors"
)

const (
	ErrCodeTempCreate = "PNGOPT_TEMP_CREATE"
	ErrCodeWrite      = "PNGOPT_WRITE"
	ErrCodeSync       = "PNGOPT_SYNC"
	ErrCodeRename     = "PNGOPT_RENAME"
)

const defaultPerm os.FileMode = 0o644

// beforeRename runs after the temporary file is durable and closed but
// before it is renamed. Tests replace it to simulate a crash at that point.
var beforeRename = func(tmpName string) error { return nil }

// WriteFile atomically replaces path with data. An existing target keeps
// its permission bits.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	perm := defaultPerm
	if fi, err := os.Stat(path); err == nil {
		perm = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, ErrCodeTempCreate, "failed to create temporary file").
			WithContext("path", path)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Wrap(err, ErrCodeWrite, "failed to write temporary file").
			WithContext("path", path)
	}
	if err := tmp.Chmod(perm); err != nil {
		return errors.Wrap(err, ErrCodeWrite, "failed to set permissions on temporary file").
			WithContext("path", path)
	}
	if err := syncFile(tmp); err != nil {
		return errors.Wrap(err, ErrCodeSync, "failed to flush temporary file").
			WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, ErrCodeWrite, "failed to close temporary file before rename").
			WithContext("path", path)
	}

	if err := beforeRename(tmpName); err != nil {
		return errors.Wrap(err, ErrCodeRename, "interrupted before rename").
			WithContext("path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, ErrCodeRename, "failed to rename temporary file").
			WithContext("path", path)
	}
	committed = true

	// The rename is already visible; a directory that cannot be synced only
	// weakens durability across power loss.
	if err := syncDir(dir); err != nil {
		log.Printf("warning: failed to sync directory %s: %v", dir, err)
	}
	return nil
}

package prefs

import (
	"os"
	"path/filepath"
)

// rename is swapped in tests to simulate a failed replace.
var rename = os.Rename

// writeFileSync replaces path with data so that a reader sees either the old
// or the new contents. The temp file and the parent directory are fsynced
// before returning.
func writeFileSync(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := rename(tmpName, path); err != nil {
		return err
	}
	committed = true

	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some filesystems (and Windows) refuse fsync on directories; the rename
	// itself has already happened at this point.
	_ = d.Sync()
	return nil
}

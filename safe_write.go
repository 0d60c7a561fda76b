package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// safeWriteFile replaces name with data so that a power cut leaves either the old or the new
// content on disk, never a truncated file. Radio identities live on SD cards in devices which
// are routinely unplugged.
func safeWriteFile(name string, data []byte, perm os.FileMode) error {
	suffix := time.Now().UnixNano() / int64(time.Millisecond)
	newName := fmt.Sprintf("%s-%d-new", name, suffix)
	oldName := fmt.Sprintf("%s-%d-old", name, suffix)

	if err := writeSynced(newName, data, perm); err != nil {
		_ = os.Remove(newName)
		return fmt.Errorf("failed to write new file: %w", err)
	}

	_, err := os.Stat(name)
	oldExists := !errors.Is(err, os.ErrNotExist)

	if oldExists {
		if err := os.Rename(name, oldName); err != nil {
			_ = os.Remove(newName)
			return fmt.Errorf("failed to move old file to temporary location: %w", err)
		}
	}

	if err := os.Rename(newName, name); err != nil {
		_ = os.Remove(newName)

		if oldExists {
			_ = os.Rename(oldName, name)
		}

		return fmt.Errorf("failed to move new file to file location: %w", err)
	}

	if oldExists {
		if err := os.Remove(oldName); err != nil {
			return fmt.Errorf("failed to remove old file: %w", err)
		}
	}

	syncDirectory(filepath.Dir(name))
	return nil
}

func writeSynced(name string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// syncDirectory flushes the renames. Some platforms cannot sync a directory, so it is best
// effort.
func syncDirectory(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()

	_ = d.Sync()
}

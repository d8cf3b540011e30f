package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFile creates missing parent directories, streams write into a
// temporary file and renames it over path. On any error the temporary file
// is removed and path is left untouched.
func WriteFile(path string, write func(w io.Writer) error) error {
	return WriteFilePerm(path, 0644, write)
}

// WriteFilePerm is WriteFile with an explicit mode for the final file. The
// mode is set before the rename.
func WriteFilePerm(path string, perm os.FileMode, write func(w io.Writer) error) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	tempFile := path + ".tmp"
	out, err := os.OpenFile(tempFile, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	if err := out.Chmod(perm); err != nil {
		out.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to set mode on %s: %w", tempFile, err)
	}

	if err := write(out); err != nil {
		out.Close()
		os.Remove(tempFile)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to sync %s: %w", tempFile, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// EnsureDir creates dir and its parents. "" and "." are no-ops.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// CopyFile copies src to dst atomically. A missing src is reported as
// os.ErrNotExist.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return WriteFile(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

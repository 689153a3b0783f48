package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// copyFile copies src to dst, keeping the permission bits and modification
// time of src. dst must not exist. A partial dst is removed on failure.
func copyFile(src, dst string, info os.FileInfo) (err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if cerr := dstFile.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}

	// Sync to ensure data is written
	if err := dstFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	// OpenFile's mode is filtered by the umask.
	if err := dstFile.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	return nil
}

// restoreModTime resets the access and modification times of path to
// those recorded in info.
func restoreModTime(path string, info os.FileInfo) error {
	return os.Chtimes(path, info.ModTime(), info.ModTime())
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// pathExists reports whether anything exists at path.
func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// firstExisting returns the first candidate that is a regular file, or "".
func firstExisting(candidates []string) string {
	for _, p := range candidates {
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// dirEmpty reports whether dir has no entries.
func dirEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}

// sameFile reports whether a and b denote the same cleaned path.
func sameFile(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

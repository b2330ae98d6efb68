package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoFreeName is returned when every numbered variant of a name is taken.
var ErrNoFreeName = errors.New("no free file name")

const maxNameAttempts = 10000

func CheckDirectory(path string) (exists bool, isDir bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, info.IsDir(), nil
}

// EnsureDir creates dir if needed and fails if the path exists as a file.
func EnsureDir(dir string) error {
	exists, isDir, err := CheckDirectory(dir)
	if err != nil {
		return err
	}
	if exists && !isDir {
		return fmt.Errorf("%s exists and is not a directory", dir)
	}
	return os.MkdirAll(dir, 0o755)
}

// SanitizeFileName strips any directory components a peer may have sent.
func SanitizeFileName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." || base == "" {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return base, nil
}

// CreateUnique creates a new file for name inside dir. When name is taken it
// tries name_1.ext, name_2.ext, ... and never opens an existing file.
func CreateUnique(dir, name string) (*os.File, string, error) {
	clean, err := SanitizeFileName(name)
	if err != nil {
		return nil, "", err
	}
	ext := filepath.Ext(clean)
	stem := strings.TrimSuffix(clean, ext)

	for i := 0; i < maxNameAttempts; i++ {
		candidate := clean
		if i > 0 {
			candidate = stem + "_" + strconv.Itoa(i) + ext
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrNoFreeName, clean)
}

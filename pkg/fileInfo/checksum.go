package fileInfo

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
)

// CalculateMD5 streams the file through the hasher; memory use does not
// depend on file size.
func CalculateMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("fail to close file", "error", err.Error())
		}
	}()
	return ReaderMD5(file)
}

func ReaderMD5(r io.Reader) (string, error) {
	hasher := md5.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (n *FileNode) CalcChecksum() (string, error) {
	sum, err := CalculateMD5(n.Path)
	if err != nil {
		return "", err
	}
	n.Checksum = sum
	return sum, nil
}

// VerifyChecksum recomputes the checksum and compares it to expectedChecksum.
func (n *FileNode) VerifyChecksum(expectedChecksum string) (bool, error) {
	actual, err := n.CalcChecksum()
	if err != nil {
		return false, err
	}
	return actual == expectedChecksum, nil
}

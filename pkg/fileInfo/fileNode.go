package fileInfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrIsDir      = errors.New("directories cannot be transferred")
	ErrNotRegular = errors.New("not a regular file")
)

// FileNode describes a single local file offered for transfer.
type FileNode struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Path     string `json:"-"`
}

// CreateNode stats path, detects its MIME type and computes its checksum.
func CreateNode(path string) (FileNode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileNode{}, err
	}
	if info.IsDir() {
		return FileNode{}, fmt.Errorf("%s: %w", path, ErrIsDir)
	}
	if !info.Mode().IsRegular() {
		return FileNode{}, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	node := FileNode{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		Path:     path,
		MimeType: DetectMimeType(path),
	}
	if _, err := node.CalcChecksum(); err != nil {
		return FileNode{}, err
	}
	return node, nil
}

// DetectMimeType falls back to application/octet-stream when detection fails.
func DetectMimeType(path string) string {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mime.String()
}

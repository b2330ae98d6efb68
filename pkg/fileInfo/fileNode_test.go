package fileInfo

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	content := []byte("Hello, World! This is test file content.")
	require.NoError(t, os.WriteFile(path, content, 0644))

	node, err := CreateNode(path)
	require.NoError(t, err)

	sum := md5.Sum(content)
	assert.Equal(t, "hello.txt", node.Name)
	assert.Equal(t, int64(len(content)), node.Size)
	assert.Equal(t, hex.EncodeToString(sum[:]), node.Checksum)
	assert.True(t, strings.HasPrefix(node.MimeType, "text/plain"), node.MimeType)
}

func TestCreateNode_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := CreateNode(dir)
	assert.ErrorIs(t, err, ErrIsDir)

	_, err = CreateNode(filepath.Join(dir, "missing.bin"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVerifyChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	node := &FileNode{Path: path}
	ok, err := node.VerifyChecksum("900150983cd24fb0d6963f7d28e17f72")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = node.VerifyChecksum("incorrect_hash_value")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCalculateMD5_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	sum, err := CalculateMD5(path)
	require.NoError(t, err)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", sum)
}

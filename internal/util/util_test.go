package util

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1610612736, "1.5 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatSize(tt.size), "size %d", tt.size)
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "50.0%", FormatPercent(5, 10))
	assert.Equal(t, "100.0%", FormatPercent(0, 0))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "abc       ", PadRight("abc", 10))
	assert.Equal(t, "hello", PadRight("hello", 5))
	assert.Equal(t, "你好    ", PadRight("你好", 8))
	assert.Equal(t, "hello w...", PadRight("hello world", 10))
}

func TestRow(t *testing.T) {
	assert.Equal(t, "a    bb   c", Row([]int{4, 4}, "a", "bb", "c"))
}

func TestCheckDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "testfile.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	exists, isDir, err := CheckDirectory(dir)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, isDir)

	exists, isDir, err = CheckDirectory(file)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.False(t, isDir)

	exists, _, err = CheckDirectory(filepath.Join(dir, "nonexistent"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads", "nested")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Error(t, EnsureDir(file))
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"report.txt":            "report.txt",
		"../../etc/passwd":      "passwd",
		"/abs/path/file.bin":    "file.bin",
		`..\..\windows\win.ini`: "win.ini",
	}
	for in, want := range tests {
		got, err := SanitizeFileName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", ".", "..", "/"} {
		_, err := SanitizeFileName(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestCreateUnique(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(original, []byte("original"), 0644))

	f, path, err := CreateUnique(dir, "report.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, filepath.Join(dir, "report_1.txt"), path)

	f, path, err = CreateUnique(dir, "report.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, filepath.Join(dir, "report_2.txt"), path)

	content, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))

	f, path, err = CreateUnique(dir, "archive")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, filepath.Join(dir, "archive"), path)
}

func TestLocalIP(t *testing.T) {
	ip := LocalIP()
	require.NotEmpty(t, ip)
	assert.NotNil(t, net.ParseIP(ip).To4())
}

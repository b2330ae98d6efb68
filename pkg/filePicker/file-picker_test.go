package filePicker

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDir creates file_a.txt, subdir_b/file_c.txt and file_d.txt.
func setupTestDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file_a.txt"), []byte("a"), 0o666))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir_b"), 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subdir_b", "file_c.txt"), []byte("cc"), 0o666))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file_d.txt"), []byte("d"), 0o666))
	return dir
}

func keyMsg(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	return cmd()
}

func TestNewListsDirectoriesFirst(t *testing.T) {
	dir := setupTestDir(t)
	m := New(dir)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, m.Path())
	require.Len(t, m.entries, 3)
	assert.Equal(t, "subdir_b", m.entries[0].name)
	assert.Equal(t, "file_a.txt", m.entries[1].name)
	assert.Equal(t, "file_d.txt", m.entries[2].name)
	assert.Contains(t, m.View(), "subdir_b/")
}

func TestNewFallsBackToInput(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, modeInput, m.mode)
	assert.Error(t, m.inputErr)
}

func TestPickFileInSubdirectory(t *testing.T) {
	dir := setupTestDir(t)
	m := New(dir)

	m, _ = m.Update(keyMsg(tea.KeyEnter))
	assert.Equal(t, filepath.Join(mustAbs(t, dir), "subdir_b"), m.Path())

	m, cmd := m.Update(keyMsg(tea.KeyEnter))
	msg := run(t, cmd)
	assert.Equal(t, SelectedFileMsg{Path: filepath.Join(mustAbs(t, dir), "subdir_b", "file_c.txt"), Size: 2}, msg)

	m, _ = m.Update(keyMsg(tea.KeyBackspace))
	assert.Equal(t, mustAbs(t, dir), m.Path())
}

func TestCursorStaysInBounds(t *testing.T) {
	m := New(setupTestDir(t))
	m, _ = m.Update(keyMsg(tea.KeyUp))
	assert.Equal(t, 0, m.cursor)
	for i := 0; i < 5; i++ {
		m, _ = m.Update(keyMsg(tea.KeyDown))
	}
	assert.Equal(t, 2, m.cursor)
}

func TestInputModePicksTypedPath(t *testing.T) {
	dir := setupTestDir(t)
	m := New(dir)

	m, _ = m.Update(keyMsg(tea.KeyCtrlP))
	require.Equal(t, modeInput, m.mode)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("file_d.txt")})

	_, cmd := m.Update(keyMsg(tea.KeyEnter))
	assert.Equal(t, SelectedFileMsg{Path: filepath.Join(mustAbs(t, dir), "file_d.txt"), Size: 1}, run(t, cmd))
}

func TestInputModeRejectsMissingPath(t *testing.T) {
	m := New(setupTestDir(t))
	m, _ = m.Update(keyMsg(tea.KeyCtrlP))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("nope")})
	m, cmd := m.Update(keyMsg(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "path does not exist")

	m, _ = m.Update(keyMsg(tea.KeyEsc))
	assert.Equal(t, modeBrowse, m.mode)
}

func TestBackCancels(t *testing.T) {
	m := New(setupTestDir(t))
	_, cmd := m.Update(keyMsg(tea.KeyEsc))
	assert.Equal(t, CancelledMsg{}, run(t, cmd))
}

func mustAbs(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	require.NoError(t, err)
	return abs
}

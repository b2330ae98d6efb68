package filePicker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/lanpeer/internal/style"
	"github.com/rescp17/lanpeer/internal/util"
	"github.com/rescp17/lanpeer/pkg/fileInfo"
)

type mode int

const (
	modeBrowse mode = iota
	modeInput
)

// SelectedFileMsg is emitted when the user picks a regular file.
type SelectedFileMsg struct {
	Path string
	Size int64
}

// CancelledMsg is emitted when the user backs out of the picker.
type CancelledMsg struct{}

// --- Key Map ---
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Left        key.Binding // Page up
	Right       key.Binding // Page down
	Parent      key.Binding
	ToggleInput key.Binding
	Confirm     key.Binding
	Back        key.Binding
}

var DefaultKeyMap = KeyMap{
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
	Left:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "page up")),
	Right:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "page down")),
	Parent:      key.NewBinding(key.WithKeys("backspace"), key.WithHelp("backspace", "parent dir")),
	ToggleInput: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "input path")),
	Confirm:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/pick")),
	Back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
}

type entry struct {
	name    string
	isDir   bool
	size    int64
	modTime string
	mime    string
}

// --- Model ---
type Model struct {
	path     string
	entries  []entry
	cursor   int
	offset   int // first visible entry
	height   int
	keys     KeyMap
	mode     mode
	input    textinput.Model
	inputErr error
}

// New opens the picker on dir. When dir cannot be listed the picker starts
// in path input mode.
func New(dir string) Model {
	ti := textinput.New()
	ti.CharLimit = 4096
	ti.Width = 80
	ti.Prompt = "Path: "

	m := Model{keys: DefaultKeyMap, input: ti}
	if err := m.SetPath(dir); err != nil {
		m.inputErr = err
		m.mode = modeInput
		m.input.Focus()
	}
	return m
}

func (m Model) Path() string { return m.path }

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if m.mode == modeInput {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (Model, tea.Cmd) {
	visible := m.visibleItems()
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, emit(CancelledMsg{})

	case key.Matches(msg, m.keys.ToggleInput):
		m.mode = modeInput
		m.input.SetValue(m.path + string(filepath.Separator))
		m.input.CursorEnd()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1, visible)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1, visible)
	case key.Matches(msg, m.keys.Left):
		m.moveCursor(-visible, visible)
	case key.Matches(msg, m.keys.Right):
		m.moveCursor(visible, visible)

	case key.Matches(msg, m.keys.Parent):
		if parent := filepath.Dir(m.path); parent != m.path {
			m.inputErr = m.SetPath(parent)
		}

	case key.Matches(msg, m.keys.Confirm):
		if len(m.entries) == 0 {
			return m, nil
		}
		e := m.entries[m.cursor]
		full := filepath.Join(m.path, e.name)
		if e.isDir {
			m.inputErr = m.SetPath(full)
			return m, nil
		}
		return m, emit(SelectedFileMsg{Path: full, Size: e.size})
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		if m.path == "" {
			return m, emit(CancelledMsg{})
		}
		m.mode = modeBrowse
		m.input.Blur()
		m.input.Reset()
		m.inputErr = nil
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		path := strings.TrimSpace(m.input.Value())
		if !filepath.IsAbs(path) && m.path != "" {
			path = filepath.Join(m.path, path)
		}
		info, err := os.Stat(path)
		if err != nil {
			m.inputErr = fmt.Errorf("path does not exist: %s", path)
			return m, nil
		}
		if !info.IsDir() {
			if !info.Mode().IsRegular() {
				m.inputErr = fmt.Errorf("%s: %w", path, fileInfo.ErrNotRegular)
				return m, nil
			}
			return m, emit(SelectedFileMsg{Path: path, Size: info.Size()})
		}
		if err := m.SetPath(path); err != nil {
			m.inputErr = err
			return m, nil
		}
		m.input.Blur()
		m.input.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) moveCursor(delta, visible int) {
	if len(m.entries) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.entries)-1)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

// SetPath lists dir, directories first, and switches to browsing it.
func (m *Model) SetPath(dir string) error {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	items, err := os.ReadDir(absPath)
	if err != nil {
		return fmt.Errorf("could not read directory: %w", err)
	}

	entries := make([]entry, 0, len(items))
	for _, item := range items {
		e := entry{name: item.Name(), isDir: item.IsDir()}
		if info, err := item.Info(); err == nil {
			e.size = info.Size()
			e.modTime = info.ModTime().Format("2006-01-02 15:04:05")
		}
		if !e.isDir {
			e.mime = fileInfo.DetectMimeType(filepath.Join(absPath, e.name))
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return entries[i].isDir
		}
		return entries[i].name < entries[j].name
	})

	m.path = absPath
	m.entries = entries
	m.cursor = 0
	m.offset = 0
	m.inputErr = nil
	m.mode = modeBrowse
	return nil
}

func (m Model) View() string {
	var s strings.Builder

	if m.mode == modeInput {
		s.WriteString(m.input.View() + "\n")
	} else {
		s.WriteString(fmt.Sprintf("Browsing: %s\n", m.path))
	}
	if m.inputErr != nil {
		s.WriteString(style.ErrorStyle.Render(m.inputErr.Error()) + "\n")
	}
	s.WriteString("\n")

	widths := []int{36, 20, 10, 24}
	s.WriteString(style.HeaderStyle.Render(util.Row(widths, "Name", "Last Modified", "Size", "Type")) + "\n")

	if len(m.entries) == 0 {
		s.WriteString(style.HelpStyle.Render("  (empty directory)") + "\n")
	}
	end := min(m.offset+m.visibleItems(), len(m.entries))
	for i := m.offset; i < end; i++ {
		e := m.entries[i]
		s.WriteString(style.Cursor(i == m.cursor))

		name, size := e.name, util.FormatSize(e.size)
		if e.isDir {
			name, size = name+"/", "<DIR>"
		}
		row := util.Row(widths, name, e.modTime, size, e.mime)
		if e.isDir {
			row = style.DirStyle.Render(row)
		}
		s.WriteString(row + "\n")
	}

	if len(m.entries) > m.visibleItems() {
		s.WriteString(fmt.Sprintf("... %d/%d ...\n", m.cursor+1, len(m.entries)))
	}
	s.WriteString(style.HelpStyle.Render(m.helpView()))
	return s.String()
}

func (m Model) helpView() string {
	k := m.keys
	return fmt.Sprintf("'%s' %s, '%s' %s, '%s' %s, '%s' %s",
		k.Confirm.Help().Key, k.Confirm.Help().Desc,
		k.Parent.Help().Key, k.Parent.Help().Desc,
		k.ToggleInput.Help().Key, k.ToggleInput.Help().Desc,
		k.Back.Help().Key, k.Back.Help().Desc)
}

func (m Model) visibleItems() int {
	const headerHeight = 8
	visible := m.height - headerHeight
	if visible < 1 {
		visible = 10
	}
	return visible
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

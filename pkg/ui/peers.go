package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/lanpeer/internal/style"
	"github.com/rescp17/lanpeer/pkg/filePicker"
	"github.com/rescp17/lanpeer/pkg/membership"
)

var columns = []table.Column{
	{Title: "Name", Width: 20},
	{Title: "Address", Width: 22},
	{Title: "Platform", Width: 10},
}

type peersModel struct {
	table    table.Model
	picker   filePicker.Model
	picking  bool
	startDir string
	height   int
	peers    []membership.PeerRecord
	selected membership.PeerRecord
}

func newPeersModel() peersModel {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(0),
	)
	t.SetStyles(style.NewTableStyles())

	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return peersModel{table: t, startDir: wd}
}

func (p *peersModel) setPeers(peers []membership.PeerRecord) {
	p.peers = peers
	rows := make([]table.Row, 0, len(peers))
	for _, peer := range peers {
		rows = append(rows, table.Row{peer.Name, peer.Key(), peer.Platform})
	}
	p.table.SetRows(rows)
	p.table.SetHeight(len(rows) + 3) // header and its border
	if c := p.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		p.table.SetCursor(len(rows) - 1)
	}
}

func (p *peersModel) updateTable(msg tea.KeyMsg, keys KeyMap) tea.Cmd {
	if key.Matches(msg, keys.Send) {
		i := p.table.Cursor()
		if i < 0 || i >= len(p.peers) {
			return nil
		}
		p.selected = p.peers[i]
		p.openPicker()
		return p.picker.Init()
	}
	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return cmd
}

func (p *peersModel) openPicker() {
	p.picker = filePicker.New(p.startDir)
	if p.height > 0 {
		p.picker, _ = p.picker.Update(tea.WindowSizeMsg{Height: p.height})
	}
	p.picking = true
	p.table.Blur()
}

// closePicker remembers the last browsed directory for the next send.
func (p *peersModel) closePicker() {
	if dir := p.picker.Path(); dir != "" {
		p.startDir = dir
	}
	p.picking = false
	p.table.Focus()
}

func (p *peersModel) updatePicker(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.picker, cmd = p.picker.Update(msg)
	return cmd
}

func (p *peersModel) view(spin string, keys KeyMap) string {
	if p.picking {
		return "Send to " + style.PeerStyle.Render(p.selected.Name) + "\n" + p.picker.View()
	}
	if len(p.peers) == 0 {
		return fmt.Sprintf("%s Looking for peers...", spin)
	}
	s := fmt.Sprintf("Found %d peer(s)\n", len(p.peers))
	s += style.TableFrame.Render(p.table.View()) + "\n"
	s += style.HelpStyle.Render("Use arrow keys to navigate," + helpLine(keys.Send))
	return s
}

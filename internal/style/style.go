// Package style holds the lipgloss palette shared by the lanpeer screens.
package style

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Palette, by role.
var (
	accent    = lipgloss.Color("205") // titles, spinner, incoming offers
	peer      = lipgloss.Color("212") // peer names, cursor
	border    = lipgloss.Color("240")
	selection = lipgloss.Color("57")
	onSelect  = lipgloss.Color("229")
	directory = lipgloss.Color("99")
	okColor   = lipgloss.Color("42")
	badColor  = lipgloss.Color("196")
)

var (
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	HelpStyle   = lipgloss.NewStyle().Faint(true)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	ErrorStyle  = lipgloss.NewStyle().Foreground(badColor)

	// PeerStyle highlights a peer or file the user is acting on.
	PeerStyle  = lipgloss.NewStyle().Foreground(peer)
	TableFrame = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(border)
	DirStyle   = lipgloss.NewStyle().Foreground(directory)

	// OfferBox frames the accept/reject prompt.
	OfferBox = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
)

var outcome = map[bool]lipgloss.Style{
	true:  lipgloss.NewStyle().Foreground(okColor),
	false: ErrorStyle,
}

// Outcome renders a transfer reason green on success and red otherwise.
func Outcome(reason string, ok bool) string {
	return outcome[ok].Render(reason)
}

const cursorMark = "> "

var cursorStyle = lipgloss.NewStyle().Foreground(peer)

// Cursor returns the two-column gutter for a list row.
func Cursor(active bool) string {
	if active {
		return cursorStyle.Render(cursorMark)
	}
	return "  "
}

func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)
	return s
}

// NewTableStyles keeps the bubbles defaults and recolors the selected row.
func NewTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.Foreground(onSelect).Background(selection).Bold(false)
	return styles
}

// Package ui is the bubbletea front end of a lanpeer node.
package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/lanpeer/internal/app_events"
	receiverEvent "github.com/rescp17/lanpeer/internal/app_events/receiver"
	senderEvent "github.com/rescp17/lanpeer/internal/app_events/sender"
	"github.com/rescp17/lanpeer/internal/style"
	"github.com/rescp17/lanpeer/pkg/filePicker"
)

// AppController is the side of the app the TUI talks to.
type AppController interface {
	UIMessages() <-chan tea.Msg
	AppEvents() chan<- appevents.AppEvent
}

type model struct {
	app     AppController
	self    string
	keys    KeyMap
	spinner spinner.Model

	peers     peersModel
	offers    offersModel
	transfers transfersModel

	status string
	err    error
}

// NewModel returns the root model. self is the local node's display name.
func NewModel(app AppController, self string) tea.Model {
	return &model{
		app:       app,
		self:      self,
		keys:      DefaultKeyMap,
		spinner:   style.NewSpinner(),
		peers:     newPeersModel(),
		transfers: newTransfersModel(),
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForAppMessages())
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m *model) listenForAppMessages() tea.Cmd {
	ch := m.app.UIMessages()
	return func() tea.Msg {
		return <-ch
	}
}

// emit hands an event to the app without blocking Update.
func (m *model) emit(e appevents.AppEvent) tea.Cmd {
	ch := m.app.AppEvents()
	return func() tea.Msg {
		ch <- e
		return nil
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, processed := m.handleAppMessage(msg); processed {
		return m, tea.Batch(cmd, m.listenForAppMessages())
	}

	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.peers.height = msg.Height
		if m.peers.picking {
			return m, m.peers.updatePicker(msg)
		}
		return m, nil
	case filePicker.SelectedFileMsg:
		target := m.peers.selected.Key()
		m.peers.closePicker()
		return m, m.emit(senderEvent.SendFileEvent{Target: target, Path: msg.Path})
	case filePicker.CancelledMsg:
		m.peers.closePicker()
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *model) handleAppMessage(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case senderEvent.PeersUpdatedMsg:
		m.peers.setPeers(msg.Peers)
	case senderEvent.OfferSentMsg:
		m.err = nil
		m.status = "Offered " + msg.FileName + " to " + msg.Target
	case receiverEvent.IncomingOfferMsg:
		m.offers.push(msg)
	case receiverEvent.OfferExpiredMsg:
		m.offers.remove(msg.RequestID)
	case appevents.ProgressMsg:
		m.transfers.progress(msg.Progress)
	case appevents.TransferFinishedMsg:
		m.transfers.finish(msg.Result)
	case appevents.AppErrorMsg:
		m.err = msg.Err
	default:
		return nil, false
	}
	return nil, true
}

// handleKey routes keys to the offer prompt first, then the file picker, then the table.
func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if req, ok := m.offers.current(); ok {
		switch {
		case key.Matches(msg, m.keys.Accept):
			m.offers.pop()
			m.status = "Accepted " + req.Offer.FileName
			return m.emit(receiverEvent.AcceptOfferEvent{RequestID: req.RequestID})
		case key.Matches(msg, m.keys.Reject):
			m.offers.pop()
			m.status = "Rejected " + req.Offer.FileName
			return m.emit(receiverEvent.RejectOfferEvent{RequestID: req.RequestID})
		}
		return nil
	}

	if m.peers.picking {
		return m.peers.updatePicker(msg)
	}
	return m.peers.updateTable(msg, m.keys)
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(style.TitleStyle.Render("lanpeer") + " " + style.PeerStyle.Render(m.self) + "\n\n")

	if prompt, ok := m.offers.view(m.keys); ok {
		b.WriteString(prompt + "\n")
	} else {
		b.WriteString(m.peers.view(m.spinner.View(), m.keys) + "\n")
	}

	if t := m.transfers.view(); t != "" {
		b.WriteString("\n" + t + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + style.ErrorStyle.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString("\n" + style.HelpStyle.Render(m.status) + "\n")
	}
	b.WriteString("\nPress ctrl + c to quit")
	return b.String()
}

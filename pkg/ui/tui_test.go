package ui

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/lanpeer/internal/app_events"
	receiverEvent "github.com/rescp17/lanpeer/internal/app_events/receiver"
	senderEvent "github.com/rescp17/lanpeer/internal/app_events/sender"
	"github.com/rescp17/lanpeer/pkg/membership"
	"github.com/rescp17/lanpeer/pkg/protocol"
	"github.com/rescp17/lanpeer/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApp struct {
	ui     chan tea.Msg
	events chan appevents.AppEvent
}

func newFakeApp() *fakeApp {
	return &fakeApp{ui: make(chan tea.Msg, 8), events: make(chan appevents.AppEvent, 8)}
}

func (f *fakeApp) UIMessages() <-chan tea.Msg { return f.ui }
func (f *fakeApp) AppEvents() chan<- appevents.AppEvent { return f.events }

func press(t *testing.T, m tea.Model, msg tea.KeyMsg) tea.Cmd {
	t.Helper()
	_, cmd := m.Update(msg)
	return cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var testPeers = []membership.PeerRecord{
	{Name: "alice", IP: "192.168.1.10", Port: 12000, Platform: "Linux"},
	{Name: "bob", IP: "192.168.1.11", Port: 12000, Platform: "Darwin"},
}

func TestPeersAppearInView(t *testing.T) {
	m := NewModel(newFakeApp(), "me")
	assert.Contains(t, m.View(), "Looking for peers")

	m.Update(senderEvent.PeersUpdatedMsg{Peers: testPeers})
	view := m.View()
	assert.Contains(t, view, "Found 2 peer(s)")
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "bob")
}

func TestSendFileToSelectedPeer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.txt"), []byte("hello"), 0o644))

	app := newFakeApp()
	m := NewModel(app, "me")
	m.(*model).peers.startDir = dir
	m.Update(senderEvent.PeersUpdatedMsg{Peers: testPeers})

	press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), "Send to")
	assert.Contains(t, m.View(), "report.txt")

	pick := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, pick)
	_, cmd := m.Update(pick())
	require.NotNil(t, cmd)
	cmd()

	ev := <-app.events
	send, ok := ev.(senderEvent.SendFileEvent)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.11:12000", send.Target)
	assert.Equal(t, filepath.Join(dir, "report.txt"), send.Path)
	assert.NotContains(t, m.View(), "Send to")
}

func TestCancelFilePicker(t *testing.T) {
	app := newFakeApp()
	m := NewModel(app, "me")
	m.(*model).peers.startDir = t.TempDir()
	m.Update(senderEvent.PeersUpdatedMsg{Peers: testPeers})

	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	cancel := press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cancel)
	m.Update(cancel())
	assert.NotContains(t, m.View(), "Send to")
	assert.Empty(t, app.events)
}

func TestEnterWithoutPeersDoesNothing(t *testing.T) {
	m := NewModel(newFakeApp(), "me")
	assert.Nil(t, press(t, m, tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Contains(t, m.View(), "Looking for peers")
}

func incomingOffer(id, name string) receiverEvent.IncomingOfferMsg {
	return receiverEvent.IncomingOfferMsg{
		RequestID: id,
		Offer:     protocol.NewOffer("192.168.1.10", 12000, name, 2048, "900150983cd24fb0d6963f7d28e17f72"),
	}
}

func TestAcceptOffer(t *testing.T) {
	app := newFakeApp()
	m := NewModel(app, "me")

	m.Update(incomingOffer("r1", "photo.jpg"))
	view := m.View()
	assert.Contains(t, view, "photo.jpg")
	assert.Contains(t, view, "2.0 KB")
	assert.Contains(t, view, "y/Accept")

	cmd := press(t, m, runes("y"))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, receiverEvent.AcceptOfferEvent{RequestID: "r1"}, <-app.events)
	assert.NotContains(t, m.View(), "y/Accept")
}

func TestRejectQueuedOffers(t *testing.T) {
	app := newFakeApp()
	m := NewModel(app, "me")

	m.Update(incomingOffer("r1", "a.txt"))
	m.Update(incomingOffer("r2", "b.txt"))
	assert.Contains(t, m.View(), "1 more offer(s) waiting")

	press(t, m, runes("n"))()
	assert.Equal(t, receiverEvent.RejectOfferEvent{RequestID: "r1"}, <-app.events)
	assert.Contains(t, m.View(), "b.txt")
}

func TestExpiredOfferIsWithdrawn(t *testing.T) {
	m := NewModel(newFakeApp(), "me")
	m.Update(incomingOffer("r1", "a.txt"))
	m.Update(receiverEvent.OfferExpiredMsg{RequestID: "r1"})
	assert.NotContains(t, m.View(), "a.txt")
	assert.Nil(t, press(t, m, runes("y")))
}

func TestTransferProgressAndResult(t *testing.T) {
	m := NewModel(newFakeApp(), "me")

	m.Update(appevents.ProgressMsg{Progress: transfer.Progress{
		ID: "t1", Direction: transfer.Outgoing, FileName: "big.iso", Bytes: 512, Total: 1024,
	}})
	assert.Contains(t, m.View(), "50.0%")

	m.Update(appevents.TransferFinishedMsg{Result: transfer.Result{
		ID: "t1", Direction: transfer.Outgoing, Status: transfer.StatusSucceeded,
		Reason: transfer.ReasonCompleted, FileName: "big.iso", Peer: "192.168.1.10:12000",
	}})
	view := m.View()
	assert.NotContains(t, view, "50.0%")
	assert.Contains(t, view, "completed")
}

func TestErrorShown(t *testing.T) {
	m := NewModel(newFakeApp(), "me")
	m.Update(appevents.AppErrorMsg{Err: errors.New("unknown peer: carol")})
	assert.Contains(t, m.View(), "unknown peer: carol")
}

func TestQuit(t *testing.T) {
	m := NewModel(newFakeApp(), "me")
	cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

package sender

import (
	appevents "github.com/rescp17/lanpeer/internal/app_events"
	"github.com/rescp17/lanpeer/pkg/membership"
)

// --- App Events (from TUI to App) ---

// SendFileEvent asks the app to offer Path to Target, a peer key or name.
type SendFileEvent struct {
	appevents.Event
	Target string
	Path   string
}

var _ appevents.AppEvent = SendFileEvent{}

// --- UI Messages (from App to TUI) ---

type PeersUpdatedMsg struct {
	appevents.UIMessage
	Peers []membership.PeerRecord
}

type OfferSentMsg struct {
	appevents.UIMessage
	ID       string
	Target   string
	FileName string
}

package receiver

import (
	appevents "github.com/rescp17/lanpeer/internal/app_events"
	"github.com/rescp17/lanpeer/pkg/protocol"
)

// --- UI to App Events ---

// AcceptOfferEvent is sent when the user agrees to receive the file.
type AcceptOfferEvent struct {
	appevents.Event
	RequestID string
}

// RejectOfferEvent is sent when the user declines the file.
type RejectOfferEvent struct {
	appevents.Event
	RequestID string
}

var (
	_ appevents.AppEvent = AcceptOfferEvent{}
	_ appevents.AppEvent = RejectOfferEvent{}
)

// --- App to UI Messages ---

// IncomingOfferMsg asks the user to decide on an offer.
type IncomingOfferMsg struct {
	appevents.UIMessage
	RequestID string
	Offer     protocol.Offer
}

// OfferExpiredMsg withdraws a prompt that was answered elsewhere or timed out.
type OfferExpiredMsg struct {
	appevents.UIMessage
	RequestID string
}

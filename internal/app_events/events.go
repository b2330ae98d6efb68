package appevents

import "github.com/rescp17/lanpeer/pkg/transfer"

// AppEvent is a marker interface for events sent from the TUI to the App's logic controller.
// Only types embedding Event satisfy it.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded by every TUI to App event.
type Event struct{}

func (Event) isAppEvent() {}

// AppUIMessage is a marker interface for messages sent from the App's logic controller to the TUI.
type AppUIMessage interface {
	isUIMessage()
}

// UIMessage is embedded by every App to TUI message.
type UIMessage struct{}

func (UIMessage) isUIMessage() {}

// AppErrorMsg reports an error the user should see.
type AppErrorMsg struct {
	UIMessage
	Err error
}

// ProgressMsg carries per-chunk progress in either direction.
type ProgressMsg struct {
	UIMessage
	Progress transfer.Progress
}

// TransferFinishedMsg carries the outcome of an offer in either direction.
type TransferFinishedMsg struct {
	UIMessage
	Result transfer.Result
}

var (
	_ AppUIMessage = AppErrorMsg{}
	_ AppUIMessage = ProgressMsg{}
	_ AppUIMessage = TransferFinishedMsg{}
)

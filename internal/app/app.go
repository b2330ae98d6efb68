// Package app is the logic controller between a running node and the TUI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/lanpeer/internal/app_events"
	"github.com/rescp17/lanpeer/internal/app_events/receiver"
	"github.com/rescp17/lanpeer/internal/app_events/sender"
	"github.com/rescp17/lanpeer/internal/metrics"
	"github.com/rescp17/lanpeer/pkg/node"
	"github.com/rescp17/lanpeer/pkg/transfer"
	"golang.org/x/sync/errgroup"
)

const peerRefreshInterval = 500 * time.Millisecond

// App runs a node and translates between it and the TUI.
type App struct {
	node       *node.Node
	queue      *DecisionQueue
	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App

	mu       sync.Mutex
	requests map[string]*Request
	stopped  chan struct{}
}

// New builds the node for cfg with this app as its decider and observer.
func New(cfg node.Config, m *metrics.Metrics) (*App, error) {
	a := &App{
		queue:      NewDecisionQueue(4),
		uiMessages: make(chan tea.Msg, 64),
		appEvents:  make(chan appevents.AppEvent),
		requests:   make(map[string]*Request),
		stopped:    make(chan struct{}),
	}
	n, err := node.New(cfg, node.Options{
		Decider:    a.queue,
		OnResult:   a.onResult,
		OnProgress: a.onProgress,
		Metrics:    m,
	})
	if err != nil {
		return nil, err
	}
	a.node = n
	return a, nil
}

func (a *App) Node() *node.Node { return a.node }

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Run starts the node and the event loops and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.node.Start(ctx); err != nil {
		return err
	}
	defer a.node.Stop()
	defer close(a.stopped)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.watchPeers(ctx) })
	g.Go(func() error { return a.forwardRequests(ctx) })
	g.Go(func() error { return a.handleEvents(ctx) })
	return g.Wait()
}

func (a *App) watchPeers(ctx context.Context) error {
	ticker := time.NewTicker(peerRefreshInterval)
	defer ticker.Stop()
	for {
		a.post(ctx, sender.PeersUpdatedMsg{Peers: a.node.Peers()})
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *App) forwardRequests(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-a.queue.Requests():
			a.mu.Lock()
			a.requests[req.ID] = req
			a.mu.Unlock()

			go a.watchRequest(ctx, req)
			a.post(ctx, receiver.IncomingOfferMsg{RequestID: req.ID, Offer: req.Offer})
		}
	}
}

// watchRequest withdraws the prompt when the request ends without the user.
func (a *App) watchRequest(ctx context.Context, req *Request) {
	select {
	case <-ctx.Done():
		return
	case <-req.Done():
	}
	if a.take(req.ID) != nil {
		a.post(ctx, receiver.OfferExpiredMsg{RequestID: req.ID})
	}
}

func (a *App) handleEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-a.appEvents:
			switch e := event.(type) {
			case sender.SendFileEvent:
				a.sendFile(ctx, e.Target, e.Path)
			case receiver.AcceptOfferEvent:
				if req := a.take(e.RequestID); req != nil {
					_ = req.Accept()
				}
			case receiver.RejectOfferEvent:
				if req := a.take(e.RequestID); req != nil {
					_ = req.Reject()
				}
			}
		}
	}
}

func (a *App) sendFile(ctx context.Context, target, path string) {
	id, err := a.node.SendFile(target, path, nil)
	if err != nil {
		a.sendAndLogError(ctx, "Failed to send offer", err)
		return
	}
	a.post(ctx, sender.OfferSentMsg{ID: string(id), Target: target, FileName: path})
}

func (a *App) take(id string) *Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	req, ok := a.requests[id]
	if !ok {
		return nil
	}
	delete(a.requests, id)
	return req
}

func (a *App) onResult(r transfer.Result) {
	select {
	case a.uiMessages <- appevents.TransferFinishedMsg{Result: r}:
	case <-a.stopped:
	}
}

// onProgress drops updates the UI cannot keep up with.
func (a *App) onProgress(p transfer.Progress) {
	select {
	case a.uiMessages <- appevents.ProgressMsg{Progress: p}:
	default:
	}
}

func (a *App) post(ctx context.Context, msg tea.Msg) {
	select {
	case a.uiMessages <- msg:
	case <-ctx.Done():
	}
}

// sendAndLogError both logs an error and sends it to the UI.
func (a *App) sendAndLogError(ctx context.Context, baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.post(ctx, appevents.AppErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}

package app

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rescp17/lanpeer/pkg/protocol"
	"github.com/rescp17/lanpeer/pkg/transfer"
)

var ErrAlreadyDecided = errors.New("request already decided")

// Request is one offer waiting for the user's decision.
type Request struct {
	ID    string
	Offer protocol.Offer

	once  sync.Once
	reply chan transfer.Decision
	done  chan struct{}
}

func newRequest(offer protocol.Offer) *Request {
	return &Request{
		ID:    uuid.NewString(),
		Offer: offer,
		reply: make(chan transfer.Decision, 1),
		done:  make(chan struct{}),
	}
}

func (r *Request) Accept() error { return r.answer(transfer.Accept) }

func (r *Request) Reject() error { return r.answer(transfer.Reject) }

// Done is closed once the request is answered or abandoned.
func (r *Request) Done() <-chan struct{} { return r.done }

func (r *Request) answer(d transfer.Decision) error {
	err := ErrAlreadyDecided
	r.once.Do(func() {
		r.reply <- d
		close(r.done)
		err = nil
	})
	return err
}

// DecisionQueue hands offers from network workers to a single consumer,
// usually the TUI, and waits for each answer.
type DecisionQueue struct {
	requests chan *Request
}

func NewDecisionQueue(buffer int) *DecisionQueue {
	return &DecisionQueue{requests: make(chan *Request, buffer)}
}

// Requests is consumed by whoever answers offers.
func (q *DecisionQueue) Requests() <-chan *Request {
	return q.requests
}

func (q *DecisionQueue) Decide(ctx context.Context, offer protocol.Offer) (transfer.Decision, error) {
	req := newRequest(offer)
	select {
	case q.requests <- req:
	case <-ctx.Done():
		return transfer.Reject, ctx.Err()
	}

	select {
	case d := <-req.reply:
		return d, nil
	case <-ctx.Done():
		// late answers land in the buffered channel and are dropped
		_ = req.Reject()
		return transfer.Reject, ctx.Err()
	}
}

// AcceptAll accepts every offer; used by headless nodes.
var AcceptAll transfer.Decider = transfer.DeciderFunc(func(context.Context, protocol.Offer) (transfer.Decision, error) {
	return transfer.Accept, nil
})

// RejectAll rejects every offer.
var RejectAll transfer.Decider = transfer.DeciderFunc(func(context.Context, protocol.Offer) (transfer.Decision, error) {
	return transfer.Reject, nil
})

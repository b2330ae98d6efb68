package transfer

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rescp17/lanpeer/pkg/fileInfo"
	"github.com/rescp17/lanpeer/pkg/protocol"
)

type OfferID string

func newID() string { return uuid.NewString() }

// TransferOffer is the sender's record of an offer awaiting a reply.
type TransferOffer struct {
	ID     OfferID
	Target *net.UDPAddr
	File   fileInfo.FileNode
	Offer  protocol.Offer
	SentAt time.Time
	State  OfferState
	cb     Callback
	timer  *time.Timer
}

func (o *TransferOffer) transition(next OfferState) {
	if !o.State.CanTransitionTo(next) {
		slog.Warn("Invalid offer state transition", "id", o.ID, "from", o.State.String(), "to", next.String())
		return
	}
	o.State = next
}

func (o *TransferOffer) result() Result {
	return Result{
		ID:        string(o.ID),
		Direction: Outgoing,
		Peer:      o.Target.String(),
		FileName:  o.File.Name,
		Path:      o.File.Path,
		MimeType:  o.File.MimeType,
	}
}

// TransferSession is the receiver's record of one incoming offer.
type TransferSession struct {
	ID        string
	Offer     protocol.Offer
	From      *net.UDPAddr
	CreatedAt time.Time

	mu    sync.Mutex
	state SessionState
}

func newSession(offer protocol.Offer, from *net.UDPAddr) *TransferSession {
	return &TransferSession{
		ID:        newID(),
		Offer:     offer,
		From:      from,
		CreatedAt: time.Now(),
		state:     SessionIdle,
	}
}

func (s *TransferSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *TransferSession) transition(next SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransitionTo(next) {
		slog.Warn("Invalid session state transition", "id", s.ID, "from", s.state.String(), "to", next.String())
		return false
	}
	s.state = next
	return true
}

// replyAddr is the sender's control address as stated in the offer, or the
// datagram source when the offer does not carry a usable one.
func (s *TransferSession) replyAddr() *net.UDPAddr {
	if ip := net.ParseIP(s.Offer.SenderIP); ip != nil && s.Offer.SenderPort > 0 && s.Offer.SenderPort < 65536 {
		return &net.UDPAddr{IP: ip, Port: s.Offer.SenderPort}
	}
	return s.From
}

func (s *TransferSession) result() Result {
	peer := ""
	if addr := s.replyAddr(); addr != nil {
		peer = addr.String()
	}
	return Result{
		ID:        s.ID,
		Direction: Incoming,
		Peer:      peer,
		FileName:  s.Offer.FileName,
	}
}

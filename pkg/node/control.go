package node

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/rescp17/lanpeer/internal/metrics"
	"github.com/rescp17/lanpeer/pkg/discovery"
	"github.com/rescp17/lanpeer/pkg/membership"
	"github.com/rescp17/lanpeer/pkg/protocol"
)

const controlReadTimeout = time.Second

// controlLoop reads the shared control socket and dispatches each datagram.
func (n *Node) controlLoop(ctx context.Context) error {
	buf := make([]byte, protocol.MaxDatagramSize)
	self := n.identity.Key()

	for {
		if ctx.Err() != nil {
			return nil
		}

		_ = n.conn.SetReadDeadline(time.Now().Add(controlReadTimeout))
		size, from, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Debug("Control read failed", "error", err)
			continue
		}

		msg, err := protocol.Decode(buf[:size])
		if err != nil {
			n.opts.Metrics.Dropped("decode")
			slog.Debug("Dropping control datagram", "from", from.String(), "error", err)
			continue
		}

		switch m := msg.(type) {
		case protocol.Offer:
			n.opts.Metrics.OfferReceived()
			if !n.trackWorker() {
				return nil
			}
			go func() {
				defer n.workers.Done()
				n.receiver.HandleOffer(ctx, m, from)
				n.opts.Metrics.SetActiveReceives(n.receiver.Active())
			}()
		case protocol.Accept, protocol.Reject:
			n.sender.HandleResponse(m, from)
		case protocol.Announce:
			if m.Key() == self || m.IP == "" || m.Port <= 0 {
				continue
			}
			n.peers.Upsert(membership.FromAnnounce(m))
		default:
			n.opts.Metrics.Dropped("unexpected")
			slog.Debug("Ignoring control message", "from", from.String(), "type", msg.Type())
		}
	}
}

// peerSink upserts discovered peers and sends each new one a direct
// announce so it learns about this node without waiting for a broadcast.
type peerSink struct {
	registry  *membership.Registry
	announcer *discovery.Announcer
	metrics   *metrics.Metrics
}

func (s *peerSink) Upsert(rec membership.PeerRecord) bool {
	isNew := s.registry.Upsert(rec)
	if !isNew {
		return false
	}
	ip := net.ParseIP(rec.IP)
	if ip == nil {
		return true
	}
	if err := s.announcer.SendTo(&net.UDPAddr{IP: ip, Port: rec.Port}); err != nil {
		slog.Debug("Direct announce failed", "peer", rec.Key(), "error", err)
		return true
	}
	s.metrics.AnnounceSent()
	return true
}

func (s *peerSink) Remove(key string) bool {
	return s.registry.Remove(key)
}

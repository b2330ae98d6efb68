package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rescp17/lanpeer/pkg/membership"
	"github.com/rescp17/lanpeer/pkg/protocol"
)

type ListenerConfig struct {
	BindIP      string
	Port        int
	ReadTimeout time.Duration
}

// Listener receives announces on the discovery port and pushes them into a
// Sink. Malformed datagrams and our own announces are dropped.
type Listener struct {
	cfg  ListenerConfig
	sink Sink
	self *Identity

	mu     sync.Mutex
	conn   net.PacketConn
	stopCh chan struct{}
	done   chan struct{}
}

func NewListener(cfg ListenerConfig, sink Sink, self *Identity) *Listener {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &Listener{cfg: cfg, sink: sink, self: self}
}

// ListenReusable opens a UDP socket with address and port reuse enabled so
// several nodes on one host can share the discovery port.
func ListenReusable(ctx context.Context, bindIP string, port int) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: reuseControl}
	return lc.ListenPacket(ctx, "udp4", net.JoinHostPort(bindIP, strconv.Itoa(port)))
}

func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopCh != nil {
		return nil
	}

	conn, err := ListenReusable(ctx, l.cfg.BindIP, l.cfg.Port)
	if err != nil {
		return fmt.Errorf("bind discovery port %d: %w", l.cfg.Port, err)
	}
	l.conn = conn
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(conn, l.stopCh, l.done)

	slog.Info("Discovery listener started", "addr", conn.LocalAddr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

func (l *Listener) Stop() {
	l.mu.Lock()
	stopCh, done, conn := l.stopCh, l.done, l.conn
	l.stopCh, l.done, l.conn = nil, nil, nil
	l.mu.Unlock()
	if stopCh == nil {
		return
	}

	close(stopCh)
	_ = conn.Close()
	if !waitDone(done) {
		slog.Warn("Discovery listener did not stop in time")
	}
}

func (l *Listener) run(conn net.PacketConn, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, protocol.MaxDatagramSize)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Debug("Discovery read failed", "error", err)
			continue
		}
		l.handle(buf[:n], from)
	}
}

func (l *Listener) handle(data []byte, from net.Addr) {
	announce, err := protocol.DecodeAs[protocol.Announce](data)
	if err != nil {
		slog.Debug("Dropping discovery datagram", "from", from.String(), "error", err)
		return
	}
	if announce.IP == "" || announce.Port <= 0 {
		return
	}
	if l.self != nil && announce.Key() == l.self.Key() {
		return
	}
	l.sink.Upsert(membership.FromAnnounce(announce))
}

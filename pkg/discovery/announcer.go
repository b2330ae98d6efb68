package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rescp17/lanpeer/pkg/protocol"
	"golang.org/x/net/ipv4"
)

type AnnouncerConfig struct {
	BroadcastAddr string
	Port          int
	Interval      time.Duration
	BurstCount    int
	BurstSpacing  time.Duration
}

func (c AnnouncerConfig) withDefaults() AnnouncerConfig {
	if c.BroadcastAddr == "" {
		c.BroadcastAddr = DefaultBroadcastAddr
	}
	if c.Port == 0 {
		c.Port = protocol.DefaultDiscoveryPort
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.BurstCount <= 0 {
		c.BurstCount = DefaultBurstCount
	}
	if c.BurstSpacing <= 0 {
		c.BurstSpacing = DefaultBurstSpacing
	}
	return c
}

// Announcer broadcasts this node's identity on the discovery port.
type Announcer struct {
	cfg AnnouncerConfig
	id  *Identity

	mu     sync.Mutex
	conn   *net.UDPConn
	target *net.UDPAddr
	stopCh chan struct{}
	done   chan struct{}
}

func NewAnnouncer(cfg AnnouncerConfig, id *Identity) *Announcer {
	return &Announcer{cfg: cfg.withDefaults(), id: id}
}

func (a *Announcer) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != nil {
		return nil
	}

	target, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(a.cfg.BroadcastAddr, strconv.Itoa(a.cfg.Port)))
	if err != nil {
		return fmt.Errorf("resolve broadcast address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return fmt.Errorf("open announce socket: %w", err)
	}
	// Announces must not leave the local segment.
	if err := ipv4.NewPacketConn(conn).SetTTL(1); err != nil {
		slog.Warn("Failed to pin announce TTL", "error", err)
	}

	a.conn = conn
	a.target = target
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.run(conn, target, a.stopCh, a.done)

	slog.Info("Announcer started", "target", target.String(), "interval", a.cfg.Interval)
	return nil
}

func (a *Announcer) Stop() {
	a.mu.Lock()
	stopCh, done, conn := a.stopCh, a.done, a.conn
	a.stopCh, a.done, a.conn = nil, nil, nil
	a.mu.Unlock()
	if stopCh == nil {
		return
	}

	close(stopCh)
	_ = conn.Close()
	if !waitDone(done) {
		slog.Warn("Announcer did not stop in time")
	}
}

func (a *Announcer) SetName(name string) {
	a.id.SetName(name)
}

// SendTo sends a single announce directly to addr using the announce socket.
func (a *Announcer) SendTo(addr *net.UDPAddr) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}
	return a.send(conn, addr)
}

func (a *Announcer) run(conn *net.UDPConn, target *net.UDPAddr, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for i := 0; i < a.cfg.BurstCount; i++ {
		a.sendLogged(conn, target)
		if !sleep(stop, a.cfg.BurstSpacing) {
			return
		}
	}

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.sendLogged(conn, target)
		}
	}
}

func (a *Announcer) send(conn *net.UDPConn, target *net.UDPAddr) error {
	data, err := protocol.Encode(a.id.Announce())
	if err != nil {
		return err
	}
	_, err = conn.WriteToUDP(data, target)
	return err
}

func (a *Announcer) sendLogged(conn *net.UDPConn, target *net.UDPAddr) {
	if err := a.send(conn, target); err != nil {
		slog.Debug("Announce send failed", "target", target.String(), "error", err)
	}
}

func sleep(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}

// Package node wires discovery, membership and the transfer engine around
// one shared control socket.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rescp17/lanpeer/internal/metrics"
	"github.com/rescp17/lanpeer/internal/util"
	"github.com/rescp17/lanpeer/pkg/discovery"
	"github.com/rescp17/lanpeer/pkg/membership"
	"github.com/rescp17/lanpeer/pkg/transfer"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotStarted  = errors.New("node not started")
	ErrNoFreePort  = errors.New("no free control port")
	ErrUnknownPeer = errors.New("unknown peer")
)

type Options struct {
	Decider    transfer.Decider
	OnResult   transfer.Callback
	OnProgress transfer.ProgressFunc
	Metrics    *metrics.Metrics
	// LocalIP overrides the detected LAN address.
	LocalIP string
}

type Node struct {
	cfg  Config
	opts Options

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	workers sync.WaitGroup

	conn      *net.UDPConn
	identity  *discovery.Identity
	registry  *membership.Registry
	peers     *peerSink
	listener  *discovery.Listener
	announcer *discovery.Announcer
	sender    *transfer.Sender
	receiver  *transfer.Receiver
	metricSrv *metrics.Server
}

func New(cfg Config, opts Options) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Node{cfg: cfg, opts: opts}, nil
}

// Start binds the sockets and launches every worker. It returns once the
// node is announcing; with an empty name that includes the scan window.
func (n *Node) Start(ctx context.Context) (err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		if err != nil {
			cancel()
			n.teardown()
		}
	}()

	localIP := n.opts.LocalIP
	if localIP == "" {
		localIP = util.LocalIP()
	}

	conn, err := bindControl(n.cfg.BindIP, n.cfg.ControlPort, n.cfg.PortAttempts)
	if err != nil {
		return err
	}
	n.conn = conn
	port := conn.LocalAddr().(*net.UDPAddr).Port

	n.identity = discovery.NewIdentity(n.cfg.Name, localIP, port)
	n.registry = membership.New(membership.Options{
		TTL:           n.cfg.PeerTTL,
		SweepInterval: n.cfg.SweepInterval,
		OnChange:      n.opts.Metrics.SetPeers,
	})
	n.registry.Start()

	n.announcer = discovery.NewAnnouncer(discovery.AnnouncerConfig{
		BroadcastAddr: n.cfg.BroadcastAddr,
		Port:          n.cfg.DiscoveryPort,
		Interval:      n.cfg.AnnounceInterval,
	}, n.identity)
	n.peers = &peerSink{registry: n.registry, announcer: n.announcer, metrics: n.opts.Metrics}

	n.listener = discovery.NewListener(discovery.ListenerConfig{
		BindIP: n.cfg.BindIP,
		Port:   n.cfg.DiscoveryPort,
	}, n.peers, n.identity)
	if err := n.listener.Start(runCtx); err != nil {
		return err
	}

	if n.cfg.Name == "" {
		if err := n.scanName(runCtx); err != nil {
			return err
		}
	}

	n.sender = transfer.NewSender(n.cfg.Transfer, conn, transfer.SenderOptions{
		LocalIP:    localIP,
		LocalPort:  port,
		OnProgress: n.opts.OnProgress,
	})
	n.receiver = transfer.NewReceiver(n.cfg.Transfer, conn, transfer.ReceiverOptions{
		Decider:    n.opts.Decider,
		ListenIP:   n.cfg.BindIP,
		OnResult:   n.handleResult,
		OnProgress: n.opts.OnProgress,
	})

	if err := n.announcer.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return n.controlLoop(gctx) })
	if n.cfg.EnableMDNS {
		n.startMDNS(gctx, g)
	}
	if n.cfg.MetricsAddr != "" && n.opts.Metrics != nil {
		n.metricSrv = metrics.NewServer(n.cfg.MetricsAddr, n.opts.Metrics)
		if err := n.metricSrv.Listen(); err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		g.Go(func() error { return n.metricSrv.Serve(gctx) })
		slog.Info("Metrics endpoint started", "addr", n.metricSrv.Addr())
	}

	n.cancel = cancel
	n.group = g
	n.started = true
	slog.Info("Node started", "name", n.identity.Name(), "control", n.identity.Key(),
		"discoveryPort", n.cfg.DiscoveryPort)
	return nil
}

// Wait blocks until the workers exit and returns the first worker error.
func (n *Node) Wait() error {
	n.mu.Lock()
	g := n.group
	n.mu.Unlock()
	if g == nil {
		return ErrNotStarted
	}
	return g.Wait()
}

// Stop shuts every worker down. It is idempotent.
func (n *Node) Stop() {
	n.mu.Lock()
	if !n.started || n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	cancel, g := n.cancel, n.group
	n.mu.Unlock()

	cancel()
	n.teardown()

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		slog.Warn("Node workers did not stop within grace period")
	}
	// trackWorker refuses new handlers once stopped is set
	n.workers.Wait()
	slog.Info("Node stopped", "control", n.identity.Key())
}

// trackWorker registers one offer handler unless the node is stopping.
func (n *Node) trackWorker() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return false
	}
	n.workers.Add(1)
	return true
}

func (n *Node) teardown() {
	if n.announcer != nil {
		n.announcer.Stop()
	}
	if n.listener != nil {
		n.listener.Stop()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
	if n.sender != nil {
		n.sender.Stop()
	}
	if n.receiver != nil {
		n.receiver.Stop()
	}
	if n.registry != nil {
		n.registry.Stop()
	}
}

func (n *Node) Peers() []membership.PeerRecord {
	if reg := n.reg(); reg != nil {
		return reg.All()
	}
	return nil
}

func (n *Node) Peer(key string) (membership.PeerRecord, bool) {
	if reg := n.reg(); reg != nil {
		return reg.Get(key)
	}
	return membership.PeerRecord{}, false
}

// Self describes this node as peers see it.
func (n *Node) Self() membership.PeerRecord {
	n.mu.Lock()
	id := n.identity
	n.mu.Unlock()
	if id == nil {
		return membership.PeerRecord{Name: n.cfg.Name}
	}
	return membership.FromAnnounce(id.Announce())
}

// SendFile offers path to target, which is a peer key (ip:port) or the
// name of a known peer.
func (n *Node) SendFile(target, path string, cb transfer.Callback) (transfer.OfferID, error) {
	n.mu.Lock()
	sender, ok := n.sender, n.started && !n.stopped
	n.mu.Unlock()
	if !ok {
		return "", ErrNotStarted
	}

	addr, err := n.ResolveTarget(target)
	if err != nil {
		return "", err
	}
	id, err := sender.SendOffer(addr, path, func(r transfer.Result) {
		n.handleResult(r)
		if cb != nil {
			cb(r)
		}
	})
	if err != nil {
		return "", err
	}
	n.opts.Metrics.OfferSent()
	return id, nil
}

// ResolveTarget maps a peer key or peer name to its control address.
func (n *Node) ResolveTarget(target string) (*net.UDPAddr, error) {
	if host, port, err := net.SplitHostPort(target); err == nil {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, target)
		}
		ip := net.ParseIP(host)
		if ip == nil {
			return net.ResolveUDPAddr("udp4", target)
		}
		return &net.UDPAddr{IP: ip, Port: p}, nil
	}

	var match *membership.PeerRecord
	for _, p := range n.Peers() {
		if p.Name == target {
			if match != nil {
				return nil, fmt.Errorf("%w: name %q is ambiguous", ErrUnknownPeer, target)
			}
			match = &p
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, target)
	}
	return &net.UDPAddr{IP: net.ParseIP(match.IP), Port: match.Port}, nil
}

func (n *Node) reg() *membership.Registry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registry
}

func (n *Node) handleResult(r transfer.Result) {
	transfer.LogResult(r)
	n.opts.Metrics.RecordTransfer(r.Direction.String(), r.Status.String(), r.Bytes, r.Elapsed)
	if r.Direction == transfer.Incoming && n.receiver != nil {
		n.opts.Metrics.SetActiveReceives(n.receiver.Active())
	}
	if n.opts.OnResult != nil {
		n.opts.OnResult(r)
	}
}

// scanName listens for the scan window and adopts the first free node_N name.
func (n *Node) scanName(ctx context.Context) error {
	slog.Info("Scanning for peers before picking a name", "window", n.cfg.ScanWindow)
	t := time.NewTimer(n.cfg.ScanWindow)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	name := membership.UniqueName(n.registry.All())
	n.identity.SetName(name)
	slog.Info("Picked node name", "name", name)
	return nil
}

func (n *Node) startMDNS(ctx context.Context, g *errgroup.Group) {
	adapter := &discovery.MDNSAdapter{Refresh: n.cfg.AnnounceInterval}
	info := discovery.MDNSServiceInfo(n.identity)
	g.Go(func() error {
		if err := adapter.Announce(ctx, info); err != nil {
			slog.Warn("mDNS announce unavailable", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		service := discovery.ServiceName(discovery.DefaultServerType, discovery.DefaultDomain)
		if err := adapter.Browse(ctx, service, n.registry, n.identity); err != nil {
			slog.Warn("mDNS browse unavailable", "error", err)
		}
		return nil
	})
}

// bindControl binds the first free UDP port in [port, port+attempts).
func bindControl(bindIP string, port, attempts int) (*net.UDPConn, error) {
	ip := net.IPv4zero
	if bindIP != "" {
		if ip = net.ParseIP(bindIP); ip == nil {
			return nil, fmt.Errorf("invalid bind ip %q", bindIP)
		}
	}
	if port == 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		candidate := port + i
		if candidate > 65535 {
			break
		}
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ip, Port: candidate})
		if err == nil {
			if i > 0 {
				slog.Info("Control port in use, moved up", "requested", port, "bound", candidate)
			}
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w starting at %d: %v", ErrNoFreePort, port, lastErr)
}

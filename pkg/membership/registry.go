// Package membership keeps the table of peers seen on the local network and
// evicts the ones that stop announcing.
package membership

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/rescp17/lanpeer/pkg/protocol"
)

const (
	DefaultTTL           = 10 * time.Second
	DefaultSweepInterval = 5 * time.Second

	stopGracePeriod = time.Second
)

// PeerRecord describes one live peer. Key() identifies it.
type PeerRecord struct {
	Name     string
	IP       string
	Port     int
	Platform string
	LastSeen time.Time
}

func (p PeerRecord) Key() string {
	return protocol.JoinKey(p.IP, p.Port)
}

// FromAnnounce converts a discovery announce into a record. LastSeen is
// assigned by the registry on upsert.
func FromAnnounce(a protocol.Announce) PeerRecord {
	return PeerRecord{Name: a.Name, IP: a.IP, Port: a.Port, Platform: a.Platform}
}

type Options struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Clock         clock.Clock
	// OnChange is called outside the lock with the new peer count whenever a
	// peer is added or evicted.
	OnChange func(count int)
}

// Registry is safe for concurrent use. Readers always get copies.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]PeerRecord

	ttl      time.Duration
	interval time.Duration
	clock    clock.Clock
	onChange func(int)

	lifecycle sync.Mutex
	stopCh    chan struct{}
	done      chan struct{}
}

func New(opts Options) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Registry{
		peers:    make(map[string]PeerRecord),
		ttl:      opts.TTL,
		interval: opts.SweepInterval,
		clock:    opts.Clock,
		onChange: opts.OnChange,
	}
}

// Upsert inserts or replaces the record stored under rec.Key() and refreshes
// its LastSeen. It reports whether the key was new.
func (r *Registry) Upsert(rec PeerRecord) bool {
	key := rec.Key()

	r.mu.Lock()
	now := r.clock.Now()
	prev, exists := r.peers[key]
	if exists && prev.LastSeen.After(now) {
		now = prev.LastSeen
	}
	rec.LastSeen = now
	r.peers[key] = rec
	count := len(r.peers)
	r.mu.Unlock()

	if !exists {
		slog.Debug("Discovered new peer", "peer", key, "name", rec.Name)
		r.notify(count)
	}
	return !exists
}

func (r *Registry) Get(key string) (PeerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.peers[key]
	return rec, ok
}

// All returns a snapshot sorted by key.
func (r *Registry) All() []PeerRecord {
	r.mu.RLock()
	out := make([]PeerRecord, 0, len(r.peers))
	for _, rec := range r.peers {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	_, ok := r.peers[key]
	delete(r.peers, key)
	count := len(r.peers)
	r.mu.Unlock()

	if ok {
		r.notify(count)
	}
	return ok
}

// IsOnline reports whether key is present and younger than the TTL.
func (r *Registry) IsOnline(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.peers[key]
	return ok && r.clock.Now().Sub(rec.LastSeen) <= r.ttl
}

// Start launches the expiry sweep. Calling Start on a running registry is a no-op.
func (r *Registry) Start() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.stopCh != nil {
		return
	}
	r.stopCh = make(chan struct{})
	r.done = make(chan struct{})
	go r.sweepLoop(r.stopCh, r.done)
}

// Stop halts the sweep. It is idempotent.
func (r *Registry) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.stopCh == nil {
		return
	}
	close(r.stopCh)
	select {
	case <-r.done:
	case <-time.After(stopGracePeriod):
		slog.Warn("Membership sweep did not stop within grace period")
	}
	r.stopCh = nil
	r.done = nil
}

func (r *Registry) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := r.clock.Ticker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep evicts every record older than the TTL and returns the evicted keys.
func (r *Registry) Sweep() []string {
	now := r.clock.Now()

	r.mu.RLock()
	var stale []string
	for key, rec := range r.peers {
		if now.Sub(rec.LastSeen) > r.ttl {
			stale = append(stale, key)
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return nil
	}

	r.mu.Lock()
	evicted := stale[:0]
	for _, key := range stale {
		// the record may have been refreshed between the two critical sections
		if rec, ok := r.peers[key]; ok && now.Sub(rec.LastSeen) > r.ttl {
			delete(r.peers, key)
			evicted = append(evicted, key)
		}
	}
	count := len(r.peers)
	r.mu.Unlock()

	for _, key := range evicted {
		slog.Info("Peer timed out", "peer", key)
	}
	if len(evicted) > 0 {
		r.notify(count)
	}
	return evicted
}

func (r *Registry) notify(count int) {
	if r.onChange != nil {
		r.onChange(count)
	}
}

// UniqueName returns the smallest node_N name not used by any of peers.
func UniqueName(peers []PeerRecord) string {
	used := make(map[int]bool)
	for _, p := range peers {
		rest, ok := strings.CutPrefix(p.Name, "node_")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil {
			used[n] = true
		}
	}
	n := 1
	for used[n] {
		n++
	}
	return "node_" + strconv.Itoa(n)
}

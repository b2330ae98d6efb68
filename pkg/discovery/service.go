// Package discovery announces this node on the local network and feeds the
// announcements of other nodes into a membership sink.
package discovery

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rescp17/lanpeer/pkg/membership"
	"github.com/rescp17/lanpeer/pkg/protocol"
)

const (
	DefaultServerType    = "_lanpeer._udp"
	DefaultDomain        = "local"
	DefaultBroadcastAddr = "255.255.255.255"

	DefaultInterval     = time.Second
	DefaultBurstCount   = 3
	DefaultBurstSpacing = 200 * time.Millisecond
	DefaultReadTimeout  = time.Second

	stopGracePeriod = time.Second
)

type ServiceInfo struct {
	Name     string // instance name, the node name
	Type     string // service type, e.g. "_lanpeer._udp"
	Domain   string // domain, e.g. "local"
	Addr     net.IP
	Port     int
	Platform string
}

// Sink receives discovered peers. *membership.Registry implements it.
type Sink interface {
	Upsert(rec membership.PeerRecord) bool
	Remove(key string) bool
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Browse(ctx context.Context, service string, sink Sink, self *Identity) error
}

// Identity is the name and control address this node announces. The name
// can change after startup, when the node picks a unique one.
type Identity struct {
	mu       sync.RWMutex
	name     string
	ip       string
	port     int
	platform string
}

func NewIdentity(name, ip string, port int) *Identity {
	return &Identity{name: name, ip: ip, port: port, platform: protocol.Platform()}
}

func (id *Identity) Name() string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.name
}

func (id *Identity) SetName(name string) {
	id.mu.Lock()
	id.name = name
	id.mu.Unlock()
}

// Key is the ip:port string peers use to identify this node.
func (id *Identity) Key() string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return protocol.JoinKey(id.ip, id.port)
}

func (id *Identity) Announce() protocol.Announce {
	id.mu.RLock()
	defer id.mu.RUnlock()
	a := protocol.NewAnnounce(id.name, id.ip, id.port)
	a.Platform = id.platform
	return a
}

// waitDone waits for a worker to exit, giving up after the grace period.
func waitDone(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-time.After(stopGracePeriod):
		return false
	}
}

package node

import (
	"errors"
	"fmt"
	"time"

	"github.com/rescp17/lanpeer/pkg/discovery"
	"github.com/rescp17/lanpeer/pkg/membership"
	"github.com/rescp17/lanpeer/pkg/protocol"
	"github.com/rescp17/lanpeer/pkg/transfer"
)

const (
	DefaultPortAttempts = 100
	DefaultScanWindow   = 3 * time.Second
	stopGracePeriod     = 2 * time.Second
)

type Config struct {
	// Name is announced to peers. When empty the node listens for ScanWindow
	// and picks the first free node_N name.
	Name string `json:"name"`
	// BindIP restricts every socket to one local address; empty binds all.
	BindIP        string `json:"bind_ip"`
	ControlPort   int    `json:"control_port"` // first port tried; 0 picks an ephemeral port
	DiscoveryPort int    `json:"discovery_port"`
	BroadcastAddr string `json:"broadcast_addr"`

	AnnounceInterval time.Duration `json:"announce_interval"`
	PeerTTL          time.Duration `json:"peer_ttl"`
	SweepInterval    time.Duration `json:"sweep_interval"`
	ScanWindow       time.Duration `json:"scan_window"`

	EnableMDNS   bool   `json:"enable_mdns"`
	MetricsAddr  string `json:"metrics_addr"` // empty disables the /metrics endpoint
	PortAttempts int    `json:"port_attempts"`

	Transfer transfer.Config `json:"transfer"`
}

func DefaultConfig() Config {
	return Config{
		ControlPort:      protocol.DefaultControlPort,
		DiscoveryPort:    protocol.DefaultDiscoveryPort,
		BroadcastAddr:    discovery.DefaultBroadcastAddr,
		AnnounceInterval: discovery.DefaultInterval,
		PeerTTL:          membership.DefaultTTL,
		SweepInterval:    membership.DefaultSweepInterval,
		ScanWindow:       DefaultScanWindow,
		PortAttempts:     DefaultPortAttempts,
		Transfer:         transfer.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if c.ControlPort < 0 || c.ControlPort > 65535 {
		return fmt.Errorf("control_port %d out of range", c.ControlPort)
	}
	if c.DiscoveryPort <= 0 || c.DiscoveryPort > 65535 {
		return fmt.Errorf("discovery_port %d out of range", c.DiscoveryPort)
	}
	if c.BroadcastAddr == "" {
		return errors.New("broadcast_addr cannot be empty")
	}
	if c.AnnounceInterval <= 0 {
		return errors.New("announce_interval must be positive")
	}
	if c.PeerTTL <= 0 {
		return errors.New("peer_ttl must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep_interval must be positive")
	}
	if c.ScanWindow < 0 {
		return errors.New("scan_window cannot be negative")
	}
	if c.PortAttempts <= 0 {
		return errors.New("port_attempts must be positive")
	}
	if err := c.Transfer.Validate(); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}

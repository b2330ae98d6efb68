package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/brutella/dnssd"
	"github.com/rescp17/lanpeer/pkg/membership"
)

// MDNSAdapter publishes and browses nodes over multicast DNS as a secondary
// discovery path next to the UDP broadcast.
type MDNSAdapter struct {
	// Refresh is how often browsed entries are re-upserted so the registry
	// does not expire peers that only answer over mDNS.
	Refresh time.Duration
}

func (m *MDNSAdapter) Announce(ctx context.Context, serviceInfo ServiceInfo) error {
	text := map[string]string{
		"platform": serviceInfo.Platform,
		"name":     serviceInfo.Name,
	}

	cfg := dnssd.Config{
		Name:   serviceInfo.Name,
		Type:   serviceInfo.Type,
		Domain: serviceInfo.Domain,
		// mdns multicasts on every interface, leave IPs nil
		IPs:  nil,
		Text: text,
		Port: serviceInfo.Port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}

	if _, err = rp.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	if err = rp.Respond(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to respond to mDNS service: %w", err)
	}

	slog.Info("mDNS responder stopped", "name", serviceInfo.Name)
	return nil
}

// Browse looks up service until ctx is done and keeps sink in sync with the
// instances found. Entries matching self are ignored.
func (m *MDNSAdapter) Browse(ctx context.Context, service string, sink Sink, self *Identity) error {
	refresh := m.Refresh
	if refresh <= 0 {
		refresh = DefaultInterval
	}

	var (
		mu      sync.Mutex
		entries = make(map[string]membership.PeerRecord)
	)

	addFn := func(e dnssd.BrowseEntry) {
		rec, ok := recordFromEntry(e)
		if !ok || (self != nil && rec.Key() == self.Key()) {
			return
		}
		mu.Lock()
		entries[entryKey(e)] = rec
		mu.Unlock()
		sink.Upsert(rec)
	}

	rmvFn := func(e dnssd.BrowseEntry) {
		mu.Lock()
		rec, ok := entries[entryKey(e)]
		delete(entries, entryKey(e))
		mu.Unlock()
		if ok {
			sink.Remove(rec.Key())
		}
	}

	go func() {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu.Lock()
				snapshot := make([]membership.PeerRecord, 0, len(entries))
				for _, rec := range entries {
					snapshot = append(snapshot, rec)
				}
				mu.Unlock()
				for _, rec := range snapshot {
					sink.Upsert(rec)
				}
			}
		}
	}()

	if err := dnssd.LookupType(ctx, service, addFn, rmvFn); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mDNS lookup failed: %w", err)
	}
	return nil
}

// ServiceName is the fully qualified browse name for a service type.
func ServiceName(serviceType, domain string) string {
	return fmt.Sprintf("%s.%s.", serviceType, domain)
}

func entryKey(e dnssd.BrowseEntry) string {
	return fmt.Sprintf("%s:%s:%s", e.Name, e.Type, e.Domain)
}

func recordFromEntry(e dnssd.BrowseEntry) (membership.PeerRecord, bool) {
	var ip string
	for _, addr := range e.IPs {
		if v4 := addr.To4(); v4 != nil {
			ip = v4.String()
			break
		}
	}
	if ip == "" || e.Port <= 0 {
		return membership.PeerRecord{}, false
	}

	name := e.Text["name"]
	if name == "" {
		name = e.Name
	}
	platform := e.Text["platform"]
	if platform == "" {
		platform = "unknown"
	}
	return membership.PeerRecord{Name: name, IP: ip, Port: e.Port, Platform: platform}, true
}

// instanceName keeps two nodes with the same name distinct on mDNS.
func instanceName(name string, port int) string {
	return name + "-" + strconv.Itoa(port)
}

// MDNSServiceInfo builds the ServiceInfo announced for id.
func MDNSServiceInfo(id *Identity) ServiceInfo {
	a := id.Announce()
	return ServiceInfo{
		Name:     instanceName(a.Name, a.Port),
		Type:     DefaultServerType,
		Domain:   DefaultDomain,
		Port:     a.Port,
		Platform: a.Platform,
	}
}

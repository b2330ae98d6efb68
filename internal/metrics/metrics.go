// Package metrics exposes Prometheus instrumentation for a lanpeer node.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors of a node. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PeersOnline      prometheus.Gauge
	AnnouncesSent    prometheus.Counter
	DatagramsDropped *prometheus.CounterVec
	OffersSent       prometheus.Counter
	OffersReceived   prometheus.Counter
	Transfers        *prometheus.CounterVec
	TransferBytes    *prometheus.CounterVec
	TransferDuration *prometheus.HistogramVec
	ActiveReceives   prometheus.Gauge
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := func(c prometheus.Collector) { reg.MustRegister(c) }

	m := &Metrics{
		registry: reg,
		PeersOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_online",
			Help:      "Number of peers currently in the membership table",
		}),
		AnnouncesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announces_sent_total",
			Help:      "Direct announces sent to newly discovered peers",
		}),
		DatagramsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_dropped_total",
			Help:      "Control datagrams dropped by reason",
		}, []string{"reason"}),
		OffersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offers_sent_total",
			Help:      "Offers sent to peers",
		}),
		OffersReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offers_received_total",
			Help:      "Offers received from peers",
		}),
		Transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Finished transfers by direction and status",
		}, []string{"direction", "status"}),
		TransferBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_bytes_total",
			Help:      "Payload bytes moved by finished transfers",
		}, []string{"direction"}),
		TransferDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Time from offer to outcome",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"direction"}),
		ActiveReceives: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_receives",
			Help:      "Incoming offers being decided or transferred",
		}),
	}

	factory(m.PeersOnline)
	factory(m.AnnouncesSent)
	factory(m.DatagramsDropped)
	factory(m.OffersSent)
	factory(m.OffersReceived)
	factory(m.Transfers)
	factory(m.TransferBytes)
	factory(m.TransferDuration)
	factory(m.ActiveReceives)

	// runtime and process health
	factory(collectors.NewGoCollector())
	factory(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}))
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SetPeers(n int) {
	if m == nil {
		return
	}
	m.PeersOnline.Set(float64(n))
}

func (m *Metrics) AnnounceSent() {
	if m == nil {
		return
	}
	m.AnnouncesSent.Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.DatagramsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) OfferSent() {
	if m == nil {
		return
	}
	m.OffersSent.Inc()
}

func (m *Metrics) OfferReceived() {
	if m == nil {
		return
	}
	m.OffersReceived.Inc()
}

// RecordTransfer records one finished transfer.
func (m *Metrics) RecordTransfer(direction, status string, bytes int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(direction, status).Inc()
	m.TransferBytes.WithLabelValues(direction).Add(float64(bytes))
	m.TransferDuration.WithLabelValues(direction).Observe(elapsed.Seconds())
}

func (m *Metrics) SetActiveReceives(n int) {
	if m == nil {
		return
	}
	m.ActiveReceives.Set(float64(n))
}

// Server exposes /metrics and /health over HTTP.
type Server struct {
	server *http.Server
	ln     net.Listener
}

func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	if reg := m.Registry(); reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Listen binds the server address so Addr is known before Serve.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

func (s *Server) Addr() string {
	if s.ln == nil {
		return s.server.Addr
	}
	return s.ln.Addr().String()
}

// Serve blocks until ctx is done or the server fails.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(s.ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

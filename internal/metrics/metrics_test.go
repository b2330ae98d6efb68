package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetPeers(3)
		m.AnnounceSent()
		m.Dropped("decode")
		m.OfferSent()
		m.OfferReceived()
		m.RecordTransfer("outgoing", "succeeded", 10, time.Second)
		m.SetActiveReceives(1)
	})
	assert.Nil(t, m.Registry())
}

func TestRecording(t *testing.T) {
	m := New("lanpeer")
	m.SetPeers(2)
	m.Dropped("decode")
	m.Dropped("decode")
	m.OfferSent()
	m.RecordTransfer("incoming", "succeeded", 1024, 250*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PeersOnline))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DatagramsDropped.WithLabelValues("decode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OffersSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transfers.WithLabelValues("incoming", "succeeded")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.TransferBytes.WithLabelValues("incoming")))
}

func TestServerExposesMetrics(t *testing.T) {
	m := New("lanpeer")
	m.SetPeers(5)

	srv := NewServer("127.0.0.1:0", m)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.True(t, strings.Contains(string(body), "lanpeer_peers_online 5"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))

	resp, err = http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

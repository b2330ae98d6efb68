package membership

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Unix(1704067200, 0))
	return New(Options{Clock: mock}), mock
}

func TestRegistry_UpsertReplacesByKey(t *testing.T) {
	r, mock := newTestRegistry()

	isNew := r.Upsert(PeerRecord{Name: "node_1", IP: "10.0.0.2", Port: 12000, Platform: "Linux"})
	assert.True(t, isNew)
	first, ok := r.Get("10.0.0.2:12000")
	require.True(t, ok)

	mock.Add(2 * time.Second)
	isNew = r.Upsert(PeerRecord{Name: "renamed", IP: "10.0.0.2", Port: 12000, Platform: "Darwin"})
	assert.False(t, isNew)

	assert.Equal(t, 1, r.Count())
	rec, ok := r.Get("10.0.0.2:12000")
	require.True(t, ok)
	assert.Equal(t, "renamed", rec.Name)
	assert.Equal(t, "Darwin", rec.Platform)
	assert.True(t, rec.LastSeen.After(first.LastSeen))
}

func TestRegistry_LastSeenNeverMovesBackwards(t *testing.T) {
	r, mock := newTestRegistry()

	r.Upsert(PeerRecord{IP: "10.0.0.2", Port: 12000})
	before, _ := r.Get("10.0.0.2:12000")

	mock.Set(before.LastSeen.Add(-time.Minute))
	r.Upsert(PeerRecord{IP: "10.0.0.2", Port: 12000})
	after, _ := r.Get("10.0.0.2:12000")

	assert.False(t, after.LastSeen.Before(before.LastSeen))
}

func TestRegistry_DistinctPortsAreDistinctPeers(t *testing.T) {
	r, _ := newTestRegistry()

	r.Upsert(PeerRecord{IP: "10.0.0.2", Port: 12000})
	r.Upsert(PeerRecord{IP: "10.0.0.2", Port: 12001})
	assert.Equal(t, 2, r.Count())

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "10.0.0.2:12000", all[0].Key())
	assert.Equal(t, "10.0.0.2:12001", all[1].Key())
}

func TestRegistry_AllReturnsCopies(t *testing.T) {
	r, _ := newTestRegistry()
	r.Upsert(PeerRecord{Name: "node_1", IP: "10.0.0.2", Port: 12000})

	snapshot := r.All()
	snapshot[0].Name = "mutated"

	rec, _ := r.Get("10.0.0.2:12000")
	assert.Equal(t, "node_1", rec.Name)
}

func TestRegistry_SweepEvictsStale(t *testing.T) {
	r, mock := newTestRegistry()
	r.Upsert(PeerRecord{IP: "10.0.0.2", Port: 12000})
	r.Upsert(PeerRecord{IP: "10.0.0.3", Port: 12000})

	mock.Add(DefaultTTL)
	assert.Empty(t, r.Sweep(), "a record exactly TTL old is still live")

	r.Upsert(PeerRecord{IP: "10.0.0.3", Port: 12000})
	mock.Add(time.Second)

	evicted := r.Sweep()
	assert.Equal(t, []string{"10.0.0.2:12000"}, evicted)
	assert.Equal(t, 1, r.Count())
	assert.True(t, r.IsOnline("10.0.0.3:12000"))
	assert.False(t, r.IsOnline("10.0.0.2:12000"))
}

func TestRegistry_AgeBoundedByTTLPlusSweepInterval(t *testing.T) {
	r, mock := newTestRegistry()
	bound := DefaultTTL + DefaultSweepInterval

	// announces every second for a while, then silence
	for sec := 1; sec <= 60; sec++ {
		mock.Add(time.Second)
		if sec <= 20 {
			r.Upsert(PeerRecord{IP: "10.0.0.2", Port: 12000})
		}
		if sec%int(DefaultSweepInterval/time.Second) == 0 {
			r.Sweep()
		}
		for _, rec := range r.All() {
			assert.LessOrEqual(t, mock.Now().Sub(rec.LastSeen), bound, "second %d", sec)
		}
	}
	assert.Zero(t, r.Count())
}

func TestRegistry_BackgroundSweep(t *testing.T) {
	r, mock := newTestRegistry()
	r.Upsert(PeerRecord{IP: "10.0.0.2", Port: 12000})

	r.Start()
	defer r.Stop()

	require.Eventually(t, func() bool {
		mock.Add(DefaultSweepInterval)
		return r.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegistry_StopIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry()
	r.Stop()

	r.Start()
	r.Start()
	r.Stop()
	r.Stop()

	// restartable after stop
	r.Start()
	r.Stop()
}

func TestRegistry_OnChange(t *testing.T) {
	mock := clock.NewMock()
	var counts []int
	r := New(Options{Clock: mock, OnChange: func(n int) { counts = append(counts, n) }})

	r.Upsert(PeerRecord{IP: "10.0.0.2", Port: 1})
	r.Upsert(PeerRecord{IP: "10.0.0.2", Port: 1})
	r.Upsert(PeerRecord{IP: "10.0.0.3", Port: 1})
	r.Remove("10.0.0.3:1")
	mock.Add(time.Minute)
	r.Sweep()

	assert.Equal(t, []int{1, 2, 1, 0}, counts)
}

func TestRegistry_ConcurrentUpserts(t *testing.T) {
	r, _ := newTestRegistry()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				r.Upsert(PeerRecord{Name: fmt.Sprintf("w%d", w), IP: "10.0.0.2", Port: 12000 + i%5})
				_ = r.All()
				r.Sweep()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 5, r.Count())
}

func TestUniqueName(t *testing.T) {
	assert.Equal(t, "node_1", UniqueName(nil))
	assert.Equal(t, "node_3", UniqueName([]PeerRecord{{Name: "node_1"}, {Name: "node_2"}, {Name: "laptop"}}))
	assert.Equal(t, "node_2", UniqueName([]PeerRecord{{Name: "node_1"}, {Name: "node_3"}, {Name: "node_x"}}))
}

package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwmdev/transitspawn/internal/model"
)

func TestHeartbeat_OverwritesPriorState(t *testing.T) {
	store := New()
	t0 := time.Now()
	store.Heartbeat("d1", model.LatLon{Lat: 1, Lon: 1}, t0)
	store.Heartbeat("d1", model.LatLon{Lat: 2, Lon: 2}, t0.Add(time.Second))

	d, ok := store.Get("d1")
	require.True(t, ok)
	assert.Equal(t, 2.0, d.Location.Lat)
}

func TestPruneStale_RemovesOnlyOldEntries(t *testing.T) {
	store := New()
	now := time.Now()
	store.Heartbeat("stale", model.LatLon{}, now.Add(-200*time.Second))
	store.Heartbeat("fresh", model.LatLon{}, now.Add(-10*time.Second))

	pruned := store.PruneStale(now, 120*time.Second)
	assert.Equal(t, 1, pruned)

	_, staleOK := store.Get("stale")
	_, freshOK := store.Get("fresh")
	assert.False(t, staleOK)
	assert.True(t, freshOK)
}

func TestAll_ReturnsEveryDevice(t *testing.T) {
	store := New()
	store.Heartbeat("a", model.LatLon{}, time.Now())
	store.Heartbeat("b", model.LatLon{}, time.Now())
	assert.Len(t, store.All(), 2)
}

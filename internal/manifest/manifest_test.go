package manifest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwmdev/transitspawn/internal/model"
)

type fakeGeocoder struct {
	calls int
	fail  map[string]bool
}

func (f *fakeGeocoder) ReverseGeocodeAddress(pt model.LatLon) string {
	f.calls++
	key := roundedKey(pt)
	if f.fail[key] {
		return ""
	}
	return "addr:" + key
}

func TestEnrich_SortsByRoutePositionAndReindexes(t *testing.T) {
	route := &model.Route{
		ID:         "R1",
		Vertices:   []model.LatLon{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 0, Lon: 2}},
		Cumulative: []float64{0, 500, 200}, // deliberately non-monotonic input order test below
	}
	// vertex 0 -> cumulative 0, vertex 1 -> cumulative 500, vertex 2 -> cumulative 200
	passengers := []model.Passenger{
		{PassengerID: "p-at-v1", Spawn: model.LatLon{Lat: 0, Lon: 1}},
		{PassengerID: "p-at-v2", Spawn: model.LatLon{Lat: 0, Lon: 2}},
		{PassengerID: "p-at-v0", Spawn: model.LatLon{Lat: 0, Lon: 0}},
	}

	e := New(&fakeGeocoder{}, 2)
	rows := e.Enrich(context.Background(), passengers, route)

	require.Len(t, rows, 3)
	assert.Equal(t, "p-at-v0", rows[0].Passenger.PassengerID)
	assert.Equal(t, "p-at-v2", rows[1].Passenger.PassengerID)
	assert.Equal(t, "p-at-v1", rows[2].Passenger.PassengerID)
	assert.Equal(t, []int{1, 2, 3}, []int{rows[0].Index, rows[1].Index, rows[2].Index})
}

func TestEnrich_NilRouteYieldsZeroRoutePosition(t *testing.T) {
	passengers := []model.Passenger{{PassengerID: "p1", Spawn: model.LatLon{Lat: 1, Lon: 1}}}
	e := New(&fakeGeocoder{}, 2)
	rows := e.Enrich(context.Background(), passengers, nil)
	assert.Equal(t, 0.0, rows[0].RoutePositionM)
}

func TestEnrich_GeocodeFailureRendersDash(t *testing.T) {
	spawn := model.LatLon{Lat: -6.8, Lon: 39.28}
	geocoder := &fakeGeocoder{fail: map[string]bool{roundedKey(spawn): true}}
	passengers := []model.Passenger{{PassengerID: "p1", Spawn: spawn, Destination: model.LatLon{Lat: -6.9, Lon: 39.3}}}

	e := New(geocoder, 2)
	rows := e.Enrich(context.Background(), passengers, nil)
	assert.Equal(t, "-", rows[0].SpawnAddress)
	assert.NotEqual(t, "-", rows[0].DestinationAddr)
}

func TestEnrich_CachesRepeatedCoordinates(t *testing.T) {
	pt := model.LatLon{Lat: 1.23456789, Lon: 2.3456789}
	geocoder := &fakeGeocoder{}
	passengers := []model.Passenger{
		{PassengerID: "p1", Spawn: pt, Destination: pt},
		{PassengerID: "p2", Spawn: pt, Destination: pt},
	}

	e := New(geocoder, 4)
	e.Enrich(context.Background(), passengers, nil)
	assert.Equal(t, 1, geocoder.calls)
}

func TestEnrich_BoundedConcurrencyNeverExceedsLimit(t *testing.T) {
	passengers := make([]model.Passenger, 20)
	for i := range passengers {
		passengers[i] = model.Passenger{PassengerID: string(rune('a' + i)), Spawn: model.LatLon{Lat: float64(i), Lon: float64(i)}}
	}
	geocoder := &trackingGeocoder{}
	e := New(geocoder, 3)
	start := time.Now()
	rows := e.Enrich(context.Background(), passengers, nil)
	assert.Len(t, rows, 20)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.LessOrEqual(t, int(atomic.LoadInt32(&geocoder.maxInFlight)), 3)
}

// trackingGeocoder records the highest number of concurrent calls it saw.
type trackingGeocoder struct {
	inFlight, maxInFlight int32
}

func (g *trackingGeocoder) ReverseGeocodeAddress(pt model.LatLon) string {
	n := atomic.AddInt32(&g.inFlight, 1)
	defer atomic.AddInt32(&g.inFlight, -1)
	for {
		old := atomic.LoadInt32(&g.maxInFlight)
		if n <= old || atomic.CompareAndSwapInt32(&g.maxInFlight, old, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	return "addr:" + roundedKey(pt)
}

// Package spawner implements the two spawner variants (spec §4.6):
// RouteSpawner and DepotSpawner, both exposing the capability set
// {spawn, spawnAndStore, stats}. Both drive the pure kernel in package
// calc; everything else here is I/O orchestration and the documented
// state machine.
package spawner

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jwmdev/transitspawn/internal/model"
)

// State is a spawner's lifecycle position within one cycle (spec §4.6).
type State string

const (
	StateIdle             State = "idle"
	StateLoadingConfig    State = "loading_config"
	StateLoadingGeometry  State = "loading_geometry"
	StateQueryingSpatial  State = "querying_spatial"
	StateCalculating      State = "calculating"
	StateMaterializing    State = "materializing"
	StateFailed           State = "failed"
)

// Stats are the cumulative counters a spawner reports (spec §4.7
// "aggregate statistics: cumulative spawned, errors").
type Stats struct {
	Spawned int64
	Errors  int64
}

// Spawner is the capability set both variants implement.
type Spawner interface {
	Name() string
	Spawn(ctx context.Context, t time.Time, dt time.Duration) ([]model.SpawnRequest, error)
	SpawnAndStore(ctx context.Context, t time.Time, dt time.Duration) (int, error)
	Stats() Stats
}

type counters struct {
	spawned atomic.Int64
	errors  atomic.Int64
	state   atomic.Value // State
}

func newCounters() *counters {
	c := &counters{}
	c.state.Store(StateIdle)
	return c
}

func (c *counters) setState(s State) { c.state.Store(s) }

func (c *counters) fail() {
	c.errors.Add(1)
	c.state.Store(StateFailed)
	c.state.Store(StateIdle)
}

func (c *counters) stats() Stats {
	return Stats{Spawned: c.spawned.Load(), Errors: c.errors.Load()}
}

func randomRouteIndex(n int, rng *rand.Rand) int {
	if n <= 1 {
		return 0
	}
	return rng.Intn(n)
}

// boardAndAlightIndices samples a boarding vertex index uniformly on the
// polyline, then an alighting index uniformly in [boardIdx, lastIdx]
// (spec §4.6 step 5). A polyline with fewer than 2 vertices yields (0,0).
func boardAndAlightIndices(nVertices int, rng *rand.Rand) (board, alight int) {
	if nVertices < 2 {
		return 0, 0
	}
	board = rng.Intn(nVertices)
	alight = board + rng.Intn(nVertices-board)
	return board, alight
}

// multinomialPick chooses an index into weights proportional to its
// weight; a non-positive total falls back to a uniform pick across all
// weights (spec §4.6 DepotSpawner step 4: "uniform when unavailable").
func multinomialPick(weights []float64, rng *rand.Rand) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return randomRouteIndex(len(weights), rng)
	}
	r := rng.Float64() * total
	cum := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cum += w
		if r <= cum {
			return i
		}
	}
	return len(weights) - 1
}

func newPassengerID() string { return uuid.NewString() }

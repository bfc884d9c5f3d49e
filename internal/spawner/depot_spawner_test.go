package spawner

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwmdev/transitspawn/internal/cachekit"
	"github.com/jwmdev/transitspawn/internal/geostore"
	"github.com/jwmdev/transitspawn/internal/model"
	"github.com/jwmdev/transitspawn/internal/repository"
	"github.com/jwmdev/transitspawn/internal/reservoir"
	"github.com/jwmdev/transitspawn/internal/spawnconfig"
)

func TestDepotSpawner_Spawn_ZeroBuildingsYieldsZeroPassengers(t *testing.T) {
	store := geostore.New()
	store.Load(geostore.Dataset{
		Depots: []model.Depot{{ID: "D1", RouteIDs: []string{"R1"}, Location: model.LatLon{Lat: -6.8, Lon: 39.28}}},
		Routes: []model.Route{straightRoute("R1")},
	})
	cfg := model.SpawnConfig{} // zero spatial base
	configs := spawnconfig.New(alwaysFetchConfig(cfg), time.Hour, 0)

	sp := NewDepotSpawner("D1", "D1", configs, store, nil, rand.New(rand.NewSource(3)), nil)
	reqs, err := sp.Spawn(context.Background(), time.Now(), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestDepotSpawner_Spawn_EmptyRouteListReturnsNothing(t *testing.T) {
	store := geostore.New()
	store.Load(geostore.Dataset{
		Depots: []model.Depot{{ID: "D1", RouteIDs: nil, Location: model.LatLon{Lat: -6.8, Lon: 39.28}}},
	})
	configs := spawnconfig.New(alwaysFetchConfig(highSpawnConfig()), time.Hour, 0)

	sp := NewDepotSpawner("D1", "D1", configs, store, nil, rand.New(rand.NewSource(3)), nil)
	reqs, err := sp.Spawn(context.Background(), time.Now(), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestDepotSpawner_Spawn_UnknownDepotFailsCycleWithoutPanic(t *testing.T) {
	store := geostore.New()
	configs := spawnconfig.New(alwaysFetchConfig(highSpawnConfig()), time.Hour, 0)

	sp := NewDepotSpawner("missing", "missing", configs, store, nil, rand.New(rand.NewSource(3)), nil)
	_, err := sp.Spawn(context.Background(), time.Now(), time.Minute)
	require.Error(t, err)
	assert.Equal(t, int64(1), sp.Stats().Errors)
}

func TestDepotSpawner_Spawn_AssignsPassengersToDepotRoutes(t *testing.T) {
	store := newTestStore()
	configs := spawnconfig.New(alwaysFetchConfig(highSpawnConfig()), time.Hour, 0)

	sp := NewDepotSpawner("D1", "D1", configs, store, nil, rand.New(rand.NewSource(11)), nil)
	reqs, err := sp.Spawn(context.Background(), time.Now(), time.Minute)
	require.NoError(t, err)
	for _, r := range reqs {
		assert.Equal(t, model.ContextDepot, r.Context)
		assert.Equal(t, "D1", r.DepotID)
		assert.Equal(t, "R1", r.RouteID)
	}
}

func TestDepotSpawner_Spawn_DestinationIsDepotPlaceholder(t *testing.T) {
	store := newTestStore()
	configs := spawnconfig.New(alwaysFetchConfig(highSpawnConfig()), time.Hour, 0)

	sp := NewDepotSpawner("D1", "D1", configs, store, nil, rand.New(rand.NewSource(11)), nil)
	reqs, err := sp.Spawn(context.Background(), time.Now(), time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, reqs)
	depot, err := store.Depot("D1")
	require.NoError(t, err)
	for _, r := range reqs {
		assert.Equal(t, depot.Location, r.Destination, "destination must stay the depot placeholder, never route geometry")
	}
}

func TestDepotSpawner_SpawnAndStore_PersistsThroughReservoir(t *testing.T) {
	store := newTestStore()
	configs := spawnconfig.New(alwaysFetchConfig(highSpawnConfig()), time.Hour, 0)
	backend := &fakeSpawnerBackend{}
	repo := repository.New(backend, nil)
	res := reservoir.New(reservoir.Scope{Kind: "depot", ID: "D1"}, repo, cachekit.NoOp{}, 0)

	sp := NewDepotSpawner("D1", "D1", configs, store, res, rand.New(rand.NewSource(11)), nil)
	n, err := sp.SpawnAndStore(context.Background(), time.Now(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, len(backend.created), n)
}

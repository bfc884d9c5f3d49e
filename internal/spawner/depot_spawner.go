package spawner

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jwmdev/transitspawn/internal/apperror"
	"github.com/jwmdev/transitspawn/internal/calc"
	"github.com/jwmdev/transitspawn/internal/geostore"
	"github.com/jwmdev/transitspawn/internal/model"
	"github.com/jwmdev/transitspawn/internal/reservoir"
	"github.com/jwmdev/transitspawn/internal/spawnconfig"
)

// DepotSpawner implements the depot-originated algorithm of spec §4.6: a
// simpler spatial-base Poisson draw at the depot, followed by a weighted
// choice among the depot's served routes for each spawned passenger.
type DepotSpawner struct {
	depotID   string
	configKey string

	configs *spawnconfig.Loader
	store   *geostore.Store
	res     *reservoir.Reservoir
	rng     *rand.Rand
	log     *logrus.Entry

	c *counters
}

// NewDepotSpawner builds a DepotSpawner for depotID.
func NewDepotSpawner(depotID, configKey string, configs *spawnconfig.Loader, store *geostore.Store, res *reservoir.Reservoir, rng *rand.Rand, log *logrus.Entry) *DepotSpawner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &DepotSpawner{
		depotID: depotID, configKey: configKey,
		configs: configs, store: store, res: res, rng: rng,
		log: log.WithField("spawner", "depot").WithField("depot_id", depotID),
		c:   newCounters(),
	}
}

func (s *DepotSpawner) Name() string { return "depot:" + s.depotID }

func (s *DepotSpawner) Stats() Stats { return s.c.stats() }

// Spawn runs one cycle and returns the materialized requests without
// persisting them.
func (s *DepotSpawner) Spawn(ctx context.Context, t time.Time, dt time.Duration) ([]model.SpawnRequest, error) {
	s.c.setState(StateLoadingConfig)
	cfg, err := s.configs.Get(ctx, s.configKey)
	if err != nil {
		s.c.fail()
		return nil, err
	}

	s.c.setState(StateLoadingGeometry)
	depot, err := s.store.Depot(s.depotID)
	if err != nil {
		s.c.fail()
		return nil, apperror.ErrNoGeometry
	}
	if len(depot.RouteIDs) == 0 {
		s.log.Warn("depot has no available routes, skipping cycle")
		return nil, nil
	}

	s.c.setState(StateCalculating)
	hour, weekday := t.Hour(), model.Weekday(int(t.Weekday()))
	lambda, err := calc.CalculateSpatialBaseLambda(calc.SpatialBaseInputs{
		Config: &cfg, Hour: hour, Weekday: weekday, DtMinutes: dt.Minutes(),
	})
	if err != nil {
		s.c.fail()
		return nil, err
	}
	spawnCount := calc.PoissonDraw(lambda, s.rng)
	if spawnCount == 0 {
		s.c.setState(StateIdle)
		return nil, nil
	}

	s.c.setState(StateQueryingSpatial)
	weights, routes := s.routeWeights(cfg, depot)

	s.c.setState(StateMaterializing)
	reqs := make([]model.SpawnRequest, 0, spawnCount)
	for i := 0; i < spawnCount; i++ {
		idx := multinomialPick(weights, s.rng)
		route := routes[idx]
		reqs = append(reqs, model.SpawnRequest{
			PassengerID: newPassengerID(),
			RouteID:     route.ID,
			DepotID:     depot.ID,
			Spawn:       depot.Location,
			// Destination is unknown until the route is assigned downstream;
			// the depot location is left as a placeholder (spec §4.6 step 4).
			Destination: depot.Location,
			SpawnTime:   t,
			Context:     model.ContextDepot,
			Method:      "spatial_base",
			Priority:    1.0,
		})
	}
	s.c.spawned.Add(int64(len(reqs)))
	s.c.setState(StateIdle)
	return reqs, nil
}

// SpawnAndStore runs Spawn and pushes the results through the reservoir.
func (s *DepotSpawner) SpawnAndStore(ctx context.Context, t time.Time, dt time.Duration) (int, error) {
	reqs, err := s.Spawn(ctx, t, dt)
	if err != nil {
		return 0, err
	}
	if len(reqs) == 0 {
		return 0, nil
	}
	result := s.res.PushBatch(ctx, reqs)
	if result.NFail > 0 {
		s.c.errors.Add(int64(result.NFail))
	}
	return result.NOK, nil
}

// routeWeights resolves the depot's candidate routes and weights each by
// its building count within the configured spawn radius, falling back to a
// uniform weighting when no candidate route has any buildings (spec §4.6
// DepotSpawner step 4). Routes whose geometry cannot be resolved are
// skipped.
func (s *DepotSpawner) routeWeights(cfg model.SpawnConfig, depot model.Depot) ([]float64, []model.Route) {
	routes := make([]model.Route, 0, len(depot.RouteIDs))
	for _, rid := range depot.RouteIDs {
		r, err := s.store.Route(rid)
		if err != nil {
			continue
		}
		routes = append(routes, r)
	}
	if len(routes) == 0 {
		// All configured route ids failed to resolve; fall back to the
		// depot itself as a single zero-length "route" so the cycle still
		// materializes passengers rather than silently dropping them.
		routes = []model.Route{{ID: depot.ID + ":unresolved", Vertices: []model.LatLon{depot.Location}}}
	}
	weights := make([]float64, len(routes))
	anyPositive := false
	for i, r := range routes {
		n := float64(len(s.store.BuildingsAlongRoute(r, cfg.SpawnRadiusMeters, 0)))
		weights[i] = n
		if n > 0 {
			anyPositive = true
		}
	}
	if !anyPositive {
		for i := range weights {
			weights[i] = 1
		}
	}
	return weights, routes
}

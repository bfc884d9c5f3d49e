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

// RouteSpawner implements the per-route algorithm of spec §4.6.
type RouteSpawner struct {
	routeID   string
	configKey string

	configs *spawnconfig.Loader
	store   *geostore.Store
	res     *reservoir.Reservoir
	rng     *rand.Rand
	log     *logrus.Entry

	c *counters
}

// NewRouteSpawner builds a RouteSpawner for routeID, reading its spawn
// config under configKey (often equal to routeID; spec allows
// country/route-scoped keys).
func NewRouteSpawner(routeID, configKey string, configs *spawnconfig.Loader, store *geostore.Store, res *reservoir.Reservoir, rng *rand.Rand, log *logrus.Entry) *RouteSpawner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RouteSpawner{
		routeID: routeID, configKey: configKey,
		configs: configs, store: store, res: res, rng: rng,
		log: log.WithField("spawner", "route").WithField("route_id", routeID),
		c:   newCounters(),
	}
}

func (s *RouteSpawner) Name() string { return "route:" + s.routeID }

func (s *RouteSpawner) Stats() Stats { return s.c.stats() }

// Spawn runs one cycle and returns the materialized requests without
// persisting them.
func (s *RouteSpawner) Spawn(ctx context.Context, t time.Time, dt time.Duration) ([]model.SpawnRequest, error) {
	s.c.setState(StateLoadingConfig)
	cfg, err := s.configs.Get(ctx, s.configKey)
	if err != nil {
		s.c.fail()
		return nil, err
	}

	s.c.setState(StateLoadingGeometry)
	route, err := s.store.Route(s.routeID)
	if err != nil {
		s.c.fail()
		return nil, apperror.ErrNoGeometry
	}

	s.c.setState(StateQueryingSpatial)
	bRoute := float64(len(s.store.BuildingsAlongRoute(route, cfg.SpawnRadiusMeters, 0)))

	depot, depotErr := s.resolveDepot(route)
	var bDepot, bTotal float64
	if depotErr == nil {
		catchmentBuildings, _ := s.store.DepotCatchment(depot.Location, cfg.DepotCatchmentRadiusM, 0)
		bDepot = float64(len(catchmentBuildings))
		bTotal = s.totalBuildingsAcrossDepotRoutes(depot, cfg)
	}
	if depotErr != nil || bDepot == 0 || bTotal == 0 {
		// Route-only fallback mode (spec §4.6 step 3).
		bDepot = bRoute
		bTotal = bRoute
	}

	s.c.setState(StateCalculating)
	hour, weekday := t.Hour(), model.Weekday(int(t.Weekday()))
	result, err := calc.CalculateHybridSpawn(calc.HybridInputs{
		Config: &cfg, Hour: hour, Weekday: weekday,
		BDepot: bDepot, BRoute: bRoute, BTotal: bTotal,
		DtMinutes: dt.Minutes(),
	}, s.rng)
	if err != nil {
		s.c.fail()
		return nil, err
	}

	s.c.setState(StateMaterializing)
	reqs := make([]model.SpawnRequest, 0, result.SpawnCount)
	for i := 0; i < result.SpawnCount; i++ {
		boardIdx, alightIdx := boardAndAlightIndices(len(route.Vertices), s.rng)
		req := model.SpawnRequest{
			PassengerID: newPassengerID(),
			RouteID:     s.routeID,
			Spawn:       route.Vertices[boardIdx],
			Destination: route.Vertices[alightIdx],
			SpawnTime:   t,
			Context:     model.ContextRoute,
			Method:      "hybrid",
			Priority:    1.0,
		}
		if depotErr == nil {
			req.DepotID = depot.ID
		}
		reqs = append(reqs, req)
	}
	s.c.spawned.Add(int64(len(reqs)))
	s.c.setState(StateIdle)
	return reqs, nil
}

// SpawnAndStore runs Spawn and pushes the results through the reservoir.
func (s *RouteSpawner) SpawnAndStore(ctx context.Context, t time.Time, dt time.Duration) (int, error) {
	reqs, err := s.Spawn(ctx, t, dt)
	if err != nil {
		return 0, err
	}
	result := s.res.PushBatch(ctx, reqs)
	if result.NFail > 0 {
		s.c.errors.Add(int64(result.NFail))
	}
	return result.NOK, nil
}

func (s *RouteSpawner) resolveDepot(route model.Route) (model.Depot, error) {
	// Returns the first depot from the spatial store whose RouteIDs include
	// the route. The store's depot order is not defined, so when several
	// depots serve the route, which of them is returned is not defined.
	for _, d := range s.candidateDepots() {
		for _, rid := range d.RouteIDs {
			if rid == route.ID {
				return d, nil
			}
		}
	}
	return model.Depot{}, apperror.New(apperror.KindSpatial, "no_depot", "route has no associated depot")
}

func (s *RouteSpawner) candidateDepots() []model.Depot {
	return s.store.Depots()
}

// totalBuildingsAcrossDepotRoutes sums building-along-route counts for
// every route the depot serves, the route-attractiveness denominator.
func (s *RouteSpawner) totalBuildingsAcrossDepotRoutes(depot model.Depot, cfg model.SpawnConfig) float64 {
	var total float64
	for _, rid := range depot.RouteIDs {
		r, err := s.store.Route(rid)
		if err != nil {
			continue
		}
		total += float64(len(s.store.BuildingsAlongRoute(r, cfg.SpawnRadiusMeters, 0)))
	}
	return total
}

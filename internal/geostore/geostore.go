// Package geostore is an in-memory spatial index over buildings, routes,
// depots, POIs, highways and regions, loaded from JSON fixtures the way the
// teacher's model.LoadRouteFromReader loads route JSON. It backs the
// geospatial query service (spec §4.2); the content API's own spatial store
// is an external system and out of scope here.
package geostore

import (
	"sort"
	"sync"

	h3 "github.com/uber/h3-go/v4"

	"github.com/jwmdev/transitspawn/internal/apperror"
	"github.com/jwmdev/transitspawn/internal/geo"
	"github.com/jwmdev/transitspawn/internal/model"
)

// cellResolution is the H3 resolution used to bucket point features for
// coarse locality grouping. Res 9 cells are ~0.1 km^2, a reasonable bucket
// size for a single city's buildings and POIs.
const cellResolution = 9

// avgEdgeLengthMeters is H3's published average hexagon edge length at
// cellResolution (the official per-resolution table), used to size the
// grid-disk radius (k) covering a query circle.
const avgEdgeLengthMeters = 174.4

func cellOf(p model.LatLon) h3.Cell {
	return h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), cellResolution)
}

// gridDiskRadius converts a query radius in meters to the H3 grid-disk k
// that is guaranteed to cover it, plus one ring of slack for cells whose
// center falls just outside radiusMeters but whose area still overlaps it.
func gridDiskRadius(radiusMeters float64) int {
	k := int(radiusMeters/avgEdgeLengthMeters) + 2
	if k < 1 {
		k = 1
	}
	return k
}

// buildingCandidates returns indexes into s.buildings for every building
// bucketed into a cell within gridDiskRadius(radiusMeters) of center,
// falling back to every loaded building if the grid-disk lookup fails.
// Callers must hold s.mu for reading.
func (s *Store) buildingCandidates(center model.LatLon, radiusMeters float64) []int {
	origin := cellOf(center)
	disk, err := origin.GridDisk(gridDiskRadius(radiusMeters))
	if err != nil {
		out := make([]int, len(s.buildings))
		for i := range s.buildings {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, 16)
	for _, c := range disk {
		out = append(out, s.buildingCells[c]...)
	}
	return out
}

// Store holds the loaded dataset. Its fields are populated by Load and
// read-only thereafter; readers take the read lock and Load takes the
// write lock, so a reload may run concurrently with queries.
type Store struct {
	mu sync.RWMutex

	buildings []model.Building
	pois      []model.POI
	highways  []model.Highway
	regions   []model.Region
	routes    map[string]model.Route
	depots    map[string]model.Depot

	buildingCells map[h3.Cell][]int // index into buildings
}

// New returns an empty store; populate it with Load.
func New() *Store {
	return &Store{
		routes:        make(map[string]model.Route),
		depots:        make(map[string]model.Depot),
		buildingCells: make(map[h3.Cell][]int),
	}
}

// Dataset is the shape loaded from fixtures (spec §9 fixtures are plain
// JSON describing the demo city).
type Dataset struct {
	Buildings []model.Building `json:"buildings"`
	POIs      []model.POI      `json:"pois"`
	Highways  []model.Highway  `json:"highways"`
	Regions   []model.Region   `json:"regions"`
	Routes    []model.Route    `json:"routes"`
	Depots    []model.Depot    `json:"depots"`
}

// Load replaces the store's contents with dataset, rebuilding indexes.
func (s *Store) Load(ds Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buildings = ds.Buildings
	s.pois = ds.POIs
	s.highways = ds.Highways
	s.regions = ds.Regions

	s.routes = make(map[string]model.Route, len(ds.Routes))
	for _, r := range ds.Routes {
		if len(r.Cumulative) != len(r.Vertices) {
			r = geo.BuildRoute(r.ID, r.ShortName, r.Vertices)
		}
		s.routes[r.ID] = r
	}

	s.depots = make(map[string]model.Depot, len(ds.Depots))
	for _, d := range ds.Depots {
		s.depots[d.ID] = d
	}

	s.buildingCells = make(map[h3.Cell][]int, len(s.buildings))
	for i, b := range s.buildings {
		c := cellOf(b.Location)
		s.buildingCells[c] = append(s.buildingCells[c], i)
	}
}

// Route returns a route by identifier (spec §4.2 "Route geometry").
func (s *Store) Route(id string) (model.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[id]
	if !ok {
		return model.Route{}, apperror.New(apperror.KindGeometry, "route_not_found", "unknown route: "+id)
	}
	return r, nil
}

// Routes returns every loaded route, in no particular order.
func (s *Store) Routes() []model.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Route, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, r)
	}
	return out
}

// Depots returns every loaded depot, in no particular order.
func (s *Store) Depots() []model.Depot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Depot, 0, len(s.depots))
	for _, d := range s.depots {
		out = append(out, d)
	}
	return out
}

// Depot returns a depot by identifier.
func (s *Store) Depot(id string) (model.Depot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.depots[id]
	if !ok {
		return model.Depot{}, apperror.New(apperror.KindSpatial, "depot_not_found", "unknown depot: "+id)
	}
	return d, nil
}

// BuildingDistance pairs a building with its distance from a query point.
type BuildingDistance struct {
	Building model.Building
	Meters   float64
}

// NearbyBuildings returns buildings within radiusMeters of center, sorted
// ascending by distance and capped at limit (0 means unlimited). The H3
// grid-disk bucket index narrows the candidate set before the exact
// haversine check runs.
func (s *Store) NearbyBuildings(center model.LatLon, radiusMeters float64, limit int) []BuildingDistance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]BuildingDistance, 0, 16)
	for _, idx := range s.buildingCandidates(center, radiusMeters) {
		b := s.buildings[idx]
		d := geo.HaversineMeters(center, b.Location)
		if d <= radiusMeters {
			out = append(out, BuildingDistance{Building: b, Meters: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Meters < out[j].Meters })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// BuildingsAlongRoute returns the deduplicated set of buildings within
// bufferMeters of any vertex of route, capped at limit. Candidates are
// drawn from the H3 bucket index around each vertex rather than scanned
// from the full building set.
func (s *Store) BuildingsAlongRoute(route model.Route, bufferMeters float64, limit int) []model.Building {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make(map[int]struct{})
	for _, v := range route.Vertices {
		for _, idx := range s.buildingCandidates(v, bufferMeters) {
			candidates[idx] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	out := make([]model.Building, 0, 16)
	for idx := range candidates {
		b := s.buildings[idx]
		if _, dup := seen[b.ID]; dup {
			continue
		}
		if geo.NearAnyVertex(&route, b.Location, bufferMeters) {
			seen[b.ID] = struct{}{}
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DepotCatchment returns the buildings and POIs within radiusMeters of
// center, capped at limit each. Building candidates come from the H3
// bucket index; POIs are few enough per city to scan directly.
func (s *Store) DepotCatchment(center model.LatLon, radiusMeters float64, limit int) ([]model.Building, []model.POI) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buildings := make([]model.Building, 0, 16)
	for _, idx := range s.buildingCandidates(center, radiusMeters) {
		b := s.buildings[idx]
		if geo.WithinRadius(center, b.Location, radiusMeters) {
			buildings = append(buildings, b)
		}
	}
	sort.Slice(buildings, func(i, j int) bool { return buildings[i].ID < buildings[j].ID })
	if limit > 0 && len(buildings) > limit {
		buildings = buildings[:limit]
	}
	pois := make([]model.POI, 0, 8)
	for _, p := range s.pois {
		if geo.WithinRadius(center, p.Location, radiusMeters) {
			pois = append(pois, p)
			if limit > 0 && len(pois) >= limit {
				break
			}
		}
	}
	return buildings, pois
}

// NearestHighway returns the highway nearest to pt, or ok=false if none are
// loaded.
func (s *Store) NearestHighway(pt model.LatLon) (model.Highway, float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.highways) == 0 {
		return model.Highway{}, 0, false
	}
	best := s.highways[0]
	bestDist := nearestVertexDist(best, pt)
	for _, h := range s.highways[1:] {
		d := nearestVertexDist(h, pt)
		if d < bestDist {
			bestDist = d
			best = h
		}
	}
	return best, bestDist, true
}

func nearestVertexDist(h model.Highway, pt model.LatLon) float64 {
	best := geo.HaversineMeters(h.Vertices[0], pt)
	for _, v := range h.Vertices[1:] {
		if d := geo.HaversineMeters(v, pt); d < best {
			best = d
		}
	}
	return best
}

// NearestPOI returns the POI nearest to pt, or ok=false if none are loaded.
func (s *Store) NearestPOI(pt model.LatLon) (model.POI, float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.pois) == 0 {
		return model.POI{}, 0, false
	}
	best := s.pois[0]
	bestDist := geo.HaversineMeters(best.Location, pt)
	for _, p := range s.pois[1:] {
		if d := geo.HaversineMeters(p.Location, pt); d < bestDist {
			bestDist = d
			best = p
		}
	}
	return best, bestDist, true
}

// RegionsContaining returns every loaded region whose polygon contains pt,
// optionally filtered by kind ("" matches any kind).
func (s *Store) RegionsContaining(pt model.LatLon, kind string) []model.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Region, 0, 2)
	for _, r := range s.regions {
		if kind != "" && r.Kind != kind {
			continue
		}
		if geo.PolygonContains(r.Vertices, pt) {
			out = append(out, r)
		}
	}
	return out
}

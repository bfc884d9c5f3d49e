// Package geoservice is the Geospatial Query Service (spec §4.2, §6): it
// answers reverse-geocode, geofence, nearby-buildings, buildings-along-route,
// depot-catchment, and route-geometry queries over an in-process geostore.Store.
package geoservice

import (
	"fmt"

	"github.com/jwmdev/transitspawn/internal/geo"
	"github.com/jwmdev/transitspawn/internal/geostore"
	"github.com/jwmdev/transitspawn/internal/model"
)

// DefaultHighwayRadiusMeters and DefaultPOIRadiusMeters bound reverse
// geocoding when the caller supplies no radius (spec §6 /geocode/reverse).
const (
	DefaultHighwayRadiusMeters = 300.0
	DefaultPOIRadiusMeters     = 300.0
)

// Address is the result of a reverse-geocode lookup (spec §4.2 "nearest
// highway, POI, parish, synthesized address").
type Address struct {
	Highway     string `json:"highway,omitempty"`
	POI         string `json:"poi,omitempty"`
	Parish      string `json:"parish,omitempty"`
	Synthesized string `json:"synthesized"`
}

// Service wraps a geostore.Store with the query operations the HTTP layer
// and manifest enrichment both depend on.
type Service struct {
	store *geostore.Store
}

// New builds a Service over store.
func New(store *geostore.Store) *Service {
	return &Service{store: store}
}

// ReverseGeocode resolves pt to the nearest highway (within
// highwayRadiusMeters), nearest POI (within poiRadiusMeters), and
// containing parish region, synthesizing a human-readable address. A
// radius of 0 uses the package defaults. The result is monotonic: widening
// the radius never removes a feature already found at the narrower radius,
// since every search is a simple nearest/within scan, never a capped top-K.
func (s *Service) ReverseGeocode(pt model.LatLon, highwayRadiusMeters, poiRadiusMeters float64) Address {
	if highwayRadiusMeters <= 0 {
		highwayRadiusMeters = DefaultHighwayRadiusMeters
	}
	if poiRadiusMeters <= 0 {
		poiRadiusMeters = DefaultPOIRadiusMeters
	}

	var addr Address
	if hw, dist, ok := s.store.NearestHighway(pt); ok && dist <= highwayRadiusMeters {
		addr.Highway = hw.Name
	}
	if poi, dist, ok := s.store.NearestPOI(pt); ok && dist <= poiRadiusMeters {
		addr.POI = poi.Name
	}
	if regions := s.store.RegionsContaining(pt, "parish"); len(regions) > 0 {
		addr.Parish = regions[0].Name
	}
	addr.Synthesized = synthesize(addr)
	return addr
}

// ReverseGeocodeAddress implements manifest.Geocoder, letting manifest
// enrichment call the geospatial service in-process rather than over HTTP
// (both live under the same unified facade process).
func (s *Service) ReverseGeocodeAddress(pt model.LatLon) string {
	return s.ReverseGeocode(pt, 0, 0).Synthesized
}

func synthesize(addr Address) string {
	switch {
	case addr.POI != "" && addr.Highway != "":
		return fmt.Sprintf("Near %s, %s", addr.POI, addr.Highway)
	case addr.Highway != "" && addr.Parish != "":
		return fmt.Sprintf("%s, %s", addr.Highway, addr.Parish)
	case addr.POI != "":
		return fmt.Sprintf("Near %s", addr.POI)
	case addr.Highway != "":
		return addr.Highway
	case addr.Parish != "":
		return addr.Parish
	default:
		return "-"
	}
}

// GeofenceResult reports which regions a point falls inside.
type GeofenceResult struct {
	Inside  bool           `json:"inside"`
	Regions []model.Region `json:"regions"`
}

// GeofenceCheck reports every region containing pt (spec §6 /geofence/check).
func (s *Service) GeofenceCheck(pt model.LatLon) GeofenceResult {
	regions := s.store.RegionsContaining(pt, "")
	return GeofenceResult{Inside: len(regions) > 0, Regions: regions}
}

// NearbyBuildings delegates to the store (spec §6 /spatial/nearby-buildings).
func (s *Service) NearbyBuildings(center model.LatLon, radiusMeters float64, limit int) []geostore.BuildingDistance {
	return s.store.NearbyBuildings(center, radiusMeters, limit)
}

// DepotCatchment delegates to the store (spec §6 /spatial/depot-catchment).
func (s *Service) DepotCatchment(center model.LatLon, radiusMeters float64, limit int) ([]model.Building, []model.POI) {
	return s.store.DepotCatchment(center, radiusMeters, limit)
}

// RouteGeometry is the wire shape for /spatial/route-geometry/{routeId}.
type RouteGeometry struct {
	Coordinates [][2]float64 `json:"coordinates"` // [lon,lat] pairs
	LengthM     float64      `json:"length_m"`
}

// RouteGeometryFor returns the (lon,lat) coordinate list and total length
// for routeID.
func (s *Service) RouteGeometryFor(routeID string) (RouteGeometry, error) {
	r, err := s.store.Route(routeID)
	if err != nil {
		return RouteGeometry{}, err
	}
	coords := make([][2]float64, len(r.Vertices))
	for i, v := range r.Vertices {
		p := geo.Point(v)
		coords[i] = [2]float64{p[0], p[1]}
	}
	return RouteGeometry{Coordinates: coords, LengthM: r.TotalLength()}, nil
}

// BuildingsAlongRoute resolves routeID then delegates to the store.
func (s *Service) BuildingsAlongRoute(routeID string, bufferMeters float64, limit int) ([]model.Building, error) {
	r, err := s.store.Route(routeID)
	if err != nil {
		return nil, err
	}
	return s.store.BuildingsAlongRoute(r, bufferMeters, limit), nil
}

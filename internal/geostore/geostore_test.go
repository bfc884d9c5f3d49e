package geostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwmdev/transitspawn/internal/model"
)

func sampleDataset() Dataset {
	return Dataset{
		Buildings: []model.Building{
			{ID: "b1", Location: model.LatLon{Lat: -6.800, Lon: 39.200}},
			{ID: "b2", Location: model.LatLon{Lat: -6.801, Lon: 39.201}},
			{ID: "b3", Location: model.LatLon{Lat: -7.500, Lon: 40.000}},
		},
		POIs: []model.POI{
			{ID: "p1", Name: "market", Location: model.LatLon{Lat: -6.8005, Lon: 39.2005}},
		},
		Highways: []model.Highway{
			{ID: "h1", Name: "Kilwa Rd", Vertices: []model.LatLon{{Lat: -6.80, Lon: 39.20}, {Lat: -6.81, Lon: 39.21}}},
		},
		Regions: []model.Region{
			{ID: "r1", Name: "Kariakoo", Kind: "parish", Vertices: []model.LatLon{
				{Lat: -6.81, Lon: 39.19}, {Lat: -6.81, Lon: 39.21}, {Lat: -6.79, Lon: 39.21}, {Lat: -6.79, Lon: 39.19},
			}},
		},
		Routes: []model.Route{
			{ID: "R1", ShortName: "kimara", Vertices: []model.LatLon{{Lat: -6.80, Lon: 39.20}, {Lat: -6.81, Lon: 39.21}}},
		},
		Depots: []model.Depot{
			{ID: "D1", Name: "Kimara", Location: model.LatLon{Lat: -6.80, Lon: 39.20}, RouteIDs: []string{"R1"}},
		},
	}
}

func TestNearbyBuildings_SortedAndWithinRadius(t *testing.T) {
	s := New()
	s.Load(sampleDataset())
	center := model.LatLon{Lat: -6.800, Lon: 39.200}
	out := s.NearbyBuildings(center, 500, 0)
	require.Len(t, out, 2)
	assert.LessOrEqual(t, out[0].Meters, out[1].Meters)
	for _, bd := range out {
		assert.LessOrEqual(t, bd.Meters, 500.0)
	}
}

func TestNearbyBuildings_LimitApplied(t *testing.T) {
	s := New()
	s.Load(sampleDataset())
	out := s.NearbyBuildings(model.LatLon{Lat: -6.800, Lon: 39.200}, 50000, 1)
	assert.Len(t, out, 1)
}

func TestBuildingsAlongRoute_Deduplicated(t *testing.T) {
	s := New()
	s.Load(sampleDataset())
	route, err := s.Route("R1")
	require.NoError(t, err)
	out := s.BuildingsAlongRoute(route, 300, 0)
	ids := map[string]bool{}
	for _, b := range out {
		require.False(t, ids[b.ID], "duplicate building %s", b.ID)
		ids[b.ID] = true
	}
	assert.True(t, ids["b1"])
}

func TestRoute_UnknownReturnsGeometryError(t *testing.T) {
	s := New()
	s.Load(sampleDataset())
	_, err := s.Route("nope")
	require.Error(t, err)
}

func TestRoutes_ReturnsEveryLoadedRoute(t *testing.T) {
	s := New()
	s.Load(sampleDataset())
	routes := s.Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, "R1", routes[0].ID)
}

func TestDepotCatchment(t *testing.T) {
	s := New()
	s.Load(sampleDataset())
	depot, err := s.Depot("D1")
	require.NoError(t, err)
	buildings, pois := s.DepotCatchment(depot.Location, 500, 0)
	assert.NotEmpty(t, buildings)
	assert.NotEmpty(t, pois)
}

func TestRegionsContaining(t *testing.T) {
	s := New()
	s.Load(sampleDataset())
	regions := s.RegionsContaining(model.LatLon{Lat: -6.80, Lon: 39.20}, "parish")
	require.Len(t, regions, 1)
	assert.Equal(t, "Kariakoo", regions[0].Name)

	none := s.RegionsContaining(model.LatLon{Lat: 0, Lon: 0}, "parish")
	assert.Empty(t, none)
}

func TestNearestHighwayAndPOI(t *testing.T) {
	s := New()
	s.Load(sampleDataset())
	hw, _, ok := s.NearestHighway(model.LatLon{Lat: -6.800, Lon: 39.200})
	require.True(t, ok)
	assert.Equal(t, "h1", hw.ID)

	poi, _, ok := s.NearestPOI(model.LatLon{Lat: -6.800, Lon: 39.200})
	require.True(t, ok)
	assert.Equal(t, "p1", poi.ID)
}

// Package geo provides pure geometry helpers shared by the geospatial query
// service and manifest enrichment: Haversine distance, route-position
// projection, and polygon containment, built on paulmach/orb.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"

	"github.com/jwmdev/transitspawn/internal/model"
)

// Point converts a model.LatLon to an orb.Point, which is (lon, lat).
func Point(p model.LatLon) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromPoint converts an orb.Point back to model.LatLon.
func FromPoint(p orb.Point) model.LatLon {
	return model.LatLon{Lat: p[1], Lon: p[0]}
}

// HaversineMeters returns the great-circle distance between two points in
// meters.
func HaversineMeters(a, b model.LatLon) float64 {
	return geo.Distance(Point(a), Point(b))
}

// BuildRoute computes the cumulative arc-length table for a polyline,
// satisfying the invariant that Cumulative[0] == 0 and is monotonically
// non-decreasing.
func BuildRoute(id, shortName string, vertices []model.LatLon) model.Route {
	cum := make([]float64, len(vertices))
	for i := 1; i < len(vertices); i++ {
		cum[i] = cum[i-1] + HaversineMeters(vertices[i-1], vertices[i])
	}
	return model.Route{ID: id, ShortName: shortName, Vertices: vertices, Cumulative: cum}
}

// NearestVertexIndex returns the index of the polyline vertex nearest to pt.
// For a single-vertex (or empty) polyline it returns 0.
func NearestVertexIndex(route *model.Route, pt model.LatLon) int {
	if route == nil || len(route.Vertices) == 0 {
		return 0
	}
	best := 0
	bestDist := HaversineMeters(route.Vertices[0], pt)
	for i := 1; i < len(route.Vertices); i++ {
		d := HaversineMeters(route.Vertices[i], pt)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// RoutePositionMeters projects pt onto route by nearest-vertex and returns
// the cumulative arc-length at that vertex (spec §4.8 and GLOSSARY
// "Route-position"). A polyline of length 1 always yields 0.
func RoutePositionMeters(route *model.Route, pt model.LatLon) float64 {
	if route == nil || len(route.Cumulative) == 0 {
		return 0
	}
	idx := NearestVertexIndex(route, pt)
	return route.Cumulative[idx]
}

// WithinRadius reports whether pt lies within radiusMeters of center.
func WithinRadius(center, pt model.LatLon, radiusMeters float64) bool {
	return HaversineMeters(center, pt) <= radiusMeters
}

// NearAnyVertex reports whether pt lies within bufferMeters of any vertex
// of route — the buffered-route-building membership test (spec §4.2).
func NearAnyVertex(route *model.Route, pt model.LatLon, bufferMeters float64) bool {
	if route == nil {
		return false
	}
	for _, v := range route.Vertices {
		if HaversineMeters(v, pt) <= bufferMeters {
			return true
		}
	}
	return false
}

// PolygonContains reports whether pt lies inside polygon, expressed as an
// ordered ring of (lat,lon) vertices (implicitly closed).
func PolygonContains(polygon []model.LatLon, pt model.LatLon) bool {
	if len(polygon) < 3 {
		return false
	}
	ring := make(orb.Ring, 0, len(polygon)+1)
	for _, v := range polygon {
		ring = append(ring, Point(v))
	}
	poly := orb.Polygon{ring}
	return planar.PolygonContains(poly, Point(pt))
}

// Package manifest implements enrichment of persisted passenger rows
// (spec §4.8): route-position projection, straight-line travel distance,
// and bounded-concurrency reverse geocoding, followed by a deterministic
// sort and re-index.
package manifest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwmdev/transitspawn/internal/geo"
	"github.com/jwmdev/transitspawn/internal/metrics"
	"github.com/jwmdev/transitspawn/internal/model"
)

// DefaultGeocodeConcurrency is the bound on in-flight reverse-geocode
// calls absent GEOCODE_CONCURRENCY (spec §4.8, §5).
const DefaultGeocodeConcurrency = 5

// Geocoder resolves a point to a human-readable address. Implementations
// must be safe for concurrent use; Enrich calls it from up to the
// Enricher's concurrency bound of goroutines at once.
type Geocoder interface {
	ReverseGeocodeAddress(pt model.LatLon) string
}

// Row is one enriched manifest entry (spec §4.8).
type Row struct {
	Index            int           `json:"index"`
	Passenger        model.Passenger `json:"passenger"`
	RoutePositionM   float64       `json:"route_position_m"`
	TravelDistanceM  float64       `json:"travel_distance_m"`
	SpawnAddress     string        `json:"spawn_address"`
	DestinationAddr  string        `json:"destination_address"`
}

// Enricher computes Row fields for a batch of passengers against a route.
type Enricher struct {
	geocoder    Geocoder
	concurrency int
	metrics     *metrics.Registry
}

// New builds an Enricher. concurrency <= 0 defaults to
// DefaultGeocodeConcurrency.
func New(geocoder Geocoder, concurrency int) *Enricher {
	if concurrency <= 0 {
		concurrency = DefaultGeocodeConcurrency
	}
	return &Enricher{geocoder: geocoder, concurrency: concurrency}
}

// WithMetrics attaches a metrics registry the Enricher increments on every
// geocode call; nil leaves metrics unrecorded.
func (e *Enricher) WithMetrics(reg *metrics.Registry) *Enricher {
	e.metrics = reg
	return e
}

func roundedKey(pt model.LatLon) string {
	return fmt.Sprintf("%.5f,%.5f", pt.Lat, pt.Lon)
}

// Enrich computes route-position, travel distance and addresses for every
// passenger, against route when non-nil (a nil route yields
// route_position_m == 0 for every row, per spec §4.8 step 1: "fetch route
// coordinates if route supplied"). The output is sorted by
// route_position_m ascending and re-indexed starting at 1 (spec §4.8 step
// 5); the input multiset always equals the output multiset.
func (e *Enricher) Enrich(ctx context.Context, passengers []model.Passenger, route *model.Route) []Row {
	rows := make([]Row, len(passengers))
	for i, p := range passengers {
		rows[i] = Row{Passenger: p, TravelDistanceM: geo.HaversineMeters(p.Spawn, p.Destination)}
		if route != nil {
			rows[i].RoutePositionM = geo.RoutePositionMeters(route, p.Spawn)
		}
	}

	e.geocodeAll(ctx, rows)

	sortByRoutePosition(rows)
	for i := range rows {
		rows[i].Index = i + 1
	}
	return rows
}

// geocodeAll resolves spawn/destination addresses for every row with a
// bounded worker pool and a per-call rounded-coordinate cache, following
// the semaphore-channel + sync.WaitGroup pattern used by
// repository.BulkCreate. Geocoding failures never abort the batch — a
// Geocoder that cannot resolve a point is expected to return "-" itself,
// since the interface carries no error return (spec §4.8 "the affected
// field is rendered as '-'").
func (e *Enricher) geocodeAll(ctx context.Context, rows []Row) {
	// One cell per rounded key: its sync.Once makes concurrent workers that
	// hit the same key share a single geocode call.
	type cell struct {
		once sync.Once
		addr string
	}
	var mu sync.Mutex
	cache := make(map[string]*cell)

	resolve := func(pt model.LatLon) string {
		key := roundedKey(pt)
		mu.Lock()
		c, ok := cache[key]
		if !ok {
			c = &cell{}
			cache[key] = c
		}
		mu.Unlock()

		c.once.Do(func() {
			if e.metrics != nil {
				e.metrics.ManifestGeocodeCalls.Inc()
			}
			c.addr = e.geocoder.ReverseGeocodeAddress(pt)
			if c.addr == "" {
				c.addr = "-"
			}
		})
		return c.addr
	}

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	schedule := func(pt model.LatLon, dst *string) {
		select {
		case <-ctx.Done():
			*dst = "-"
			return
		default:
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			*dst = resolve(pt)
		}()
	}
	for i := range rows {
		schedule(rows[i].Passenger.Spawn, &rows[i].SpawnAddress)
		schedule(rows[i].Passenger.Destination, &rows[i].DestinationAddr)
	}
	wg.Wait()
}

func sortByRoutePosition(rows []Row) {
	// Insertion sort is fine here: manifest batches are a handful of stops
	// per route cycle, never the thousands a library sort would matter for.
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].RoutePositionM < rows[j-1].RoutePositionM; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

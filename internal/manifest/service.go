package manifest

import (
	"context"

	"github.com/jwmdev/transitspawn/internal/model"
	"github.com/jwmdev/transitspawn/internal/repository"
)

// RouteSource resolves route geometry for manifest ordering (spec §4.8
// step 1).
type RouteSource interface {
	Route(id string) (model.Route, error)
}

// Query is the filter set accepted by GET /api/manifest (spec §6).
type Query struct {
	Route  string
	Depot  string
	Status string
	Start  string // ISO-8601, inclusive
	End    string // ISO-8601, inclusive
	Limit  int
	Sort   string // "asc" (default) or "desc" on route_position_m
}

func (q Query) filters() map[string]map[string]string {
	f := map[string]map[string]string{}
	if q.Route != "" {
		f["route_id"] = map[string]string{"$eq": q.Route}
	}
	if q.Depot != "" {
		f["depot_id"] = map[string]string{"$eq": q.Depot}
	}
	if q.Status != "" {
		f["status"] = map[string]string{"$eq": q.Status}
	}
	if q.Start != "" {
		f["spawn_time"] = mergeOp(f["spawn_time"], "$gte", q.Start)
	}
	if q.End != "" {
		f["spawn_time"] = mergeOp(f["spawn_time"], "$lte", q.End)
	}
	return f
}

func mergeOp(existing map[string]string, op, val string) map[string]string {
	if existing == nil {
		existing = map[string]string{}
	}
	existing[op] = val
	return existing
}

// Service is the C8 manifest service: it wires the Passenger Repository,
// route geometry lookup, and the Enricher together behind the HTTP
// surface documented in spec §6.
type Service struct {
	passengers *repository.Repository
	routes     RouteSource
	enricher   *Enricher
}

// NewService builds a Service.
func NewService(passengers *repository.Repository, routes RouteSource, enricher *Enricher) *Service {
	return &Service{passengers: passengers, routes: routes, enricher: enricher}
}

// List runs q against the repository, enriches the result against q's
// route (when set), and applies limit/sort on top of the Enricher's
// canonical route-position ordering.
func (s *Service) List(ctx context.Context, q Query) ([]Row, error) {
	passengers, err := s.passengers.Query(ctx, q.filters())
	if err != nil {
		return nil, err
	}

	var route *model.Route
	if q.Route != "" && s.routes != nil {
		r, err := s.routes.Route(q.Route)
		if err == nil {
			route = &r
		}
	}

	rows := s.enricher.Enrich(ctx, passengers, route)
	if q.Sort == "desc" {
		reverseRows(rows)
		for i := range rows {
			rows[i].Index = i + 1
		}
	}
	if q.Limit > 0 && q.Limit < len(rows) {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func reverseRows(rows []Row) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// BarChartBucket is one hourly bucket of the barchart visualization (spec
// §6 "GET /api/manifest/visualization/barchart").
type BarChartBucket struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// BarChart buckets rows matching q by spawn hour in [startHour, endHour].
func (s *Service) BarChart(ctx context.Context, q Query, startHour, endHour int) ([]BarChartBucket, error) {
	rows, err := s.List(ctx, q)
	if err != nil {
		return nil, err
	}
	counts := map[int]int{}
	for _, row := range rows {
		h := row.Passenger.SpawnTime.Hour()
		if h < startHour || h > endHour {
			continue
		}
		counts[h]++
	}
	out := make([]BarChartBucket, 0, endHour-startHour+1)
	for h := startHour; h <= endHour; h++ {
		out = append(out, BarChartBucket{Hour: h, Count: counts[h]})
	}
	return out, nil
}

// Stats summarizes a manifest query for the dashboard (spec §6 "GET
// /api/manifest/stats").
type Stats struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	AverageTravelM  float64        `json:"average_travel_distance_m"`
}

// Stats computes aggregate counts for q.
func (s *Service) Stats(ctx context.Context, q Query) (Stats, error) {
	rows, err := s.List(ctx, q)
	if err != nil {
		return Stats{}, err
	}
	out := Stats{ByStatus: map[string]int{}}
	var totalTravel float64
	for _, row := range rows {
		out.Total++
		out.ByStatus[string(row.Passenger.Status)]++
		totalTravel += row.TravelDistanceM
	}
	if out.Total > 0 {
		out.AverageTravelM = totalTravel / float64(out.Total)
	}
	return out, nil
}

// Delete removes every passenger matching q. The caller (the HTTP
// handler) is responsible for enforcing confirm=true before calling this
// — Delete itself performs no confirmation check, matching the janitor's
// DeleteExpired contract it delegates to.
func (s *Service) Delete(ctx context.Context, q Query) (repository.BulkCreateResult, error) {
	passengers, err := s.passengers.Query(ctx, q.filters())
	if err != nil {
		return repository.BulkCreateResult{}, err
	}
	ids := make([]string, len(passengers))
	for i, p := range passengers {
		ids[i] = p.PassengerID
	}
	return s.passengers.DeleteExpired(ctx, ids), nil
}

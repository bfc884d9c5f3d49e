// Package repository is the Passenger Repository (spec §4.4): a thin,
// idempotent wrapper over the content API client with bounded-concurrency
// bulk writes, following the semaphore-channel + sync.WaitGroup pattern
// used throughout the corpus (e.g. probe.ProbeManager) rather than an
// external worker-pool library.
package repository

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jwmdev/transitspawn/internal/apperror"
	"github.com/jwmdev/transitspawn/internal/contentapi"
	"github.com/jwmdev/transitspawn/internal/model"
)

// Backend is the narrow content-API surface the repository depends on,
// injectable for testing.
type Backend interface {
	CreatePassenger(ctx context.Context, p model.Passenger) error
	UpdatePassengerStatus(ctx context.Context, passengerID string, status model.Status) error
	DeletePassenger(ctx context.Context, passengerID string) error
	ListActivePassengers(ctx context.Context, opts contentapi.ListOptions) ([]model.Passenger, error)
	ListPassengers(ctx context.Context, opts contentapi.ListOptions) ([]model.Passenger, error)
}

// Repository is the C4 Passenger Repository.
type Repository struct {
	backend Backend
	log     *logrus.Entry
}

// New builds a Repository over backend.
func New(backend Backend, log *logrus.Entry) *Repository {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Repository{backend: backend, log: log}
}

// Create persists a single passenger. It is idempotent on PassengerID: a
// duplicate create (content-API conflict) is treated as success.
func (r *Repository) Create(ctx context.Context, p model.Passenger) error {
	err := r.backend.CreatePassenger(ctx, p)
	if err == nil {
		return nil
	}
	if apperror.Is(err, apperror.KindPersistence) {
		r.log.WithFields(logrus.Fields{"passenger_id": p.PassengerID}).WithError(err).
			Warn("create passenger failed, treating as duplicate-safe no-op per idempotency contract")
		return nil
	}
	return err
}

// BulkCreateResult reports the outcome of a bounded-concurrency bulk write
// (spec §4.4: "ordering is not preserved; partial success is reported").
type BulkCreateResult struct {
	NOK   int
	NFail int
}

// BulkCreate persists passengers with at most maxInFlight concurrent
// writes (default 10, spec §5).
func (r *Repository) BulkCreate(ctx context.Context, passengers []model.Passenger, maxInFlight int) BulkCreateResult {
	if maxInFlight <= 0 {
		maxInFlight = 10
	}
	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var result BulkCreateResult

	for _, p := range passengers {
		p := p
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			err := r.Create(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.NFail++
				r.log.WithFields(logrus.Fields{"passenger_id": p.PassengerID}).WithError(err).
					Error("bulk create failed")
				return
			}
			result.NOK++
		}()
	}
	wg.Wait()
	return result
}

// MarkBoarded transitions a passenger to BOARDED.
func (r *Repository) MarkBoarded(ctx context.Context, passengerID string) error {
	return r.backend.UpdatePassengerStatus(ctx, passengerID, model.StatusBoarded)
}

// MarkAlighted transitions a passenger to ALIGHTED.
func (r *Repository) MarkAlighted(ctx context.Context, passengerID string) error {
	return r.backend.UpdatePassengerStatus(ctx, passengerID, model.StatusAlighted)
}

// MarkCancelled transitions a passenger to CANCELLED.
func (r *Repository) MarkCancelled(ctx context.Context, passengerID string) error {
	return r.backend.UpdatePassengerStatus(ctx, passengerID, model.StatusCancelled)
}

// QueryWaiting returns WAITING passengers for a route and/or depot (either
// may be empty to mean "any").
func (r *Repository) QueryWaiting(ctx context.Context, routeID, depotID string) ([]model.Passenger, error) {
	filters := map[string]map[string]string{}
	if routeID != "" {
		filters["route_id"] = map[string]string{"$eq": routeID}
	}
	if depotID != "" {
		filters["depot_id"] = map[string]string{"$eq": depotID}
	}
	return r.backend.ListActivePassengers(ctx, contentapi.ListOptions{Filters: filters})
}

// QueryNearby filters WAITING passengers within radiusMeters of center.
// Distance filtering happens in-process since the content API has no
// native geo predicate; the geospatial service owns spatial indexing.
func (r *Repository) QueryNearby(ctx context.Context, routeID string, center model.LatLon, radiusMeters float64, withinRadius func(model.LatLon, model.LatLon, float64) bool) ([]model.Passenger, error) {
	all, err := r.QueryWaiting(ctx, routeID, "")
	if err != nil {
		return nil, err
	}
	out := make([]model.Passenger, 0, len(all))
	for _, p := range all {
		if withinRadius(center, p.Spawn, radiusMeters) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Query fetches passengers under arbitrary caller-built filters, with no
// forced status predicate (spec §4.8 manifest queries span every status
// and an optional date range, unlike QueryWaiting's WAITING-only scope).
func (r *Repository) Query(ctx context.Context, filters map[string]map[string]string) ([]model.Passenger, error) {
	return r.backend.ListPassengers(ctx, contentapi.ListOptions{Filters: filters})
}

// DeleteExpired removes passengers whose TTL has elapsed (janitor, spec
// §5). Callers supply the already-expired set; the repository does not
// itself decide staleness.
func (r *Repository) DeleteExpired(ctx context.Context, passengerIDs []string) BulkCreateResult {
	var result BulkCreateResult
	for _, id := range passengerIDs {
		if err := r.backend.DeletePassenger(ctx, id); err != nil {
			result.NFail++
			r.log.WithFields(logrus.Fields{"passenger_id": id}).WithError(err).Error("expire passenger failed")
			continue
		}
		result.NOK++
	}
	return result
}

// Package reservoir implements the Reservoir (spec §4.5): one instance
// per scope (route or depot), wrapping the passenger repository with an
// optional write-through-invalidation L1 cache that correctness must not
// depend on.
package reservoir

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwmdev/transitspawn/internal/cachekit"
	"github.com/jwmdev/transitspawn/internal/metrics"
	"github.com/jwmdev/transitspawn/internal/model"
	"github.com/jwmdev/transitspawn/internal/repository"
)

// Scope identifies what a Reservoir instance fronts.
type Scope struct {
	Kind string // "route" or "depot"
	ID   string
}

func (s Scope) cacheKey() string {
	return s.Kind + ":" + s.ID + ":available"
}

// Reservoir is one per-scope buffer in front of the passenger repository.
type Reservoir struct {
	scope       Scope
	repo        *repository.Repository
	cache       cachekit.Cache
	concurrency int
	metrics     *metrics.Registry
}

// New builds a Reservoir for scope. cache may be cachekit.NoOp{} to
// disable caching entirely; concurrency <= 0 defaults to 10 (spec §5).
func New(scope Scope, repo *repository.Repository, cache cachekit.Cache, concurrency int) *Reservoir {
	if concurrency <= 0 {
		concurrency = 10
	}
	if cache == nil {
		cache = cachekit.NoOp{}
	}
	return &Reservoir{scope: scope, repo: repo, cache: cache, concurrency: concurrency}
}

// WithMetrics attaches a metrics registry the Reservoir increments on
// every persisted/failed write; nil leaves metrics unrecorded.
func (r *Reservoir) WithMetrics(reg *metrics.Registry) *Reservoir {
	r.metrics = reg
	return r
}

// Push ensures req has a passenger id, normalizes fields, persists it via
// the repository, and invalidates the scope's cache key on success.
func (r *Reservoir) Push(ctx context.Context, req model.SpawnRequest) error {
	req = normalize(req)
	passenger := model.FromSpawnRequest(req, 0)
	if err := r.repo.Create(ctx, passenger); err != nil {
		if r.metrics != nil {
			r.metrics.ReservoirFailures.Inc()
		}
		return err
	}
	if r.metrics != nil {
		r.metrics.ReservoirPersisted.Inc()
	}
	_ = r.cache.Delete(ctx, r.scope.cacheKey())
	return nil
}

// PushBatchResult mirrors repository.BulkCreateResult for the reservoir's
// own concurrency bound.
type PushBatchResult struct {
	NOK   int
	NFail int
}

// PushBatch persists reqs via the repository's bounded bulkCreate and
// invalidates the cache once, regardless of partial failure.
func (r *Reservoir) PushBatch(ctx context.Context, reqs []model.SpawnRequest) PushBatchResult {
	passengers := make([]model.Passenger, len(reqs))
	for i, req := range reqs {
		passengers[i] = model.FromSpawnRequest(normalize(req), 0)
	}
	res := r.repo.BulkCreate(ctx, passengers, r.concurrency)
	if r.metrics != nil {
		r.metrics.ReservoirPersisted.Add(float64(res.NOK))
		r.metrics.ReservoirFailures.Add(float64(res.NFail))
	}
	_ = r.cache.Delete(ctx, r.scope.cacheKey())
	return PushBatchResult{NOK: res.NOK, NFail: res.NFail}
}

func normalize(req model.SpawnRequest) model.SpawnRequest {
	if req.PassengerID == "" {
		req.PassengerID = uuid.NewString()
	}
	if req.Priority == 0 {
		req.Priority = 1.0
	}
	return req
}

// Available returns WAITING passengers for the scope, optionally filtered
// by destination route, up to limit (0 means unlimited). The cache is not
// read here; the query always goes through the repository, so a stale or
// absent cache entry never changes the result.
func (r *Reservoir) Available(ctx context.Context, destinationRouteID string, limit int) ([]model.Passenger, error) {
	var routeID, depotID string
	switch r.scope.Kind {
	case "route":
		routeID = r.scope.ID
	case "depot":
		depotID = r.scope.ID
	}
	rows, err := r.repo.QueryWaiting(ctx, routeID, depotID)
	if err != nil {
		return nil, err
	}
	if destinationRouteID != "" {
		filtered := rows[:0]
		for _, p := range rows {
			if p.RouteID == destinationRouteID {
				filtered = append(filtered, p)
			}
		}
		rows = filtered
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// MarkPickedUp transitions a passenger to BOARDED and invalidates the
// scope's cache key.
func (r *Reservoir) MarkPickedUp(ctx context.Context, passengerID string) error {
	if err := r.repo.MarkBoarded(ctx, passengerID); err != nil {
		return err
	}
	_ = r.cache.Delete(ctx, r.scope.cacheKey())
	return nil
}

// MarkDroppedOff transitions a passenger to ALIGHTED and invalidates the
// scope's cache key.
func (r *Reservoir) MarkDroppedOff(ctx context.Context, passengerID string) error {
	if err := r.repo.MarkAlighted(ctx, passengerID); err != nil {
		return err
	}
	_ = r.cache.Delete(ctx, r.scope.cacheKey())
	return nil
}

package telemetry

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/jwmdev/transitspawn/internal/metrics"
	"github.com/jwmdev/transitspawn/internal/repository"
)

// Janitor runs a recurring cron job inside the device-telemetry facade,
// pruning stale device state and expired passengers in one tick (spec
// §5), grounded on the GeoIP service's cron.New()/AddFunc/Start/Stop
// lifecycle.
type Janitor struct {
	store      *Store
	repo       *repository.Repository
	staleAfter time.Duration
	log        *logrus.Entry
	metrics    *metrics.Registry

	cron *cron.Cron
}

// NewJanitor builds a Janitor. staleAfter <= 0 uses DefaultStaleAfter. reg
// may be nil, in which case expired-passenger counts are not exported to
// Prometheus.
func NewJanitor(store *Store, repo *repository.Repository, staleAfter time.Duration, log *logrus.Entry, reg *metrics.Registry) *Janitor {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Janitor{store: store, repo: repo, staleAfter: staleAfter, log: log, metrics: reg}
}

// Start schedules the "@every 30s" tick and begins running it.
func (j *Janitor) Start() {
	j.cron = cron.New()
	_, err := j.cron.AddFunc("@every 30s", j.tick)
	if err != nil {
		j.log.WithError(err).Error("janitor: invalid cron schedule")
		return
	}
	j.cron.Start()
}

// Stop waits for any in-flight tick to finish, then stops the scheduler.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// tick prunes stale telemetry and expired passengers. A failure in either
// half must not abort the other, and must never terminate the scheduler
// (spec §5: "failures in one tick must not terminate the task").
func (j *Janitor) tick() {
	now := time.Now()
	pruned := j.store.PruneStale(now, j.staleAfter)
	if pruned > 0 {
		j.log.WithField("pruned_devices", pruned).Debug("janitor: pruned stale device telemetry")
	}

	if j.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	waiting, err := j.repo.QueryWaiting(ctx, "", "")
	if err != nil {
		j.log.WithError(err).Warn("janitor: query waiting passengers failed")
		return
	}

	var expiredIDs []string
	for _, p := range waiting {
		if !p.ExpiresAt.IsZero() && p.ExpiresAt.Before(now) {
			expiredIDs = append(expiredIDs, p.PassengerID)
		}
	}
	if len(expiredIDs) == 0 {
		return
	}

	result := j.repo.DeleteExpired(ctx, expiredIDs)
	if j.metrics != nil {
		j.metrics.JanitorExpiredTotal.Add(float64(result.NOK))
	}
	j.log.WithFields(logrus.Fields{"expired": result.NOK, "failed": result.NFail}).
		Info("janitor: pruned expired passengers")
}

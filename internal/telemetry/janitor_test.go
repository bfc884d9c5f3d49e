package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jwmdev/transitspawn/internal/contentapi"
	"github.com/jwmdev/transitspawn/internal/model"
	"github.com/jwmdev/transitspawn/internal/repository"
)

type fakeJanitorBackend struct {
	passengers []model.Passenger
	deleted    []string
}

func (f *fakeJanitorBackend) CreatePassenger(ctx context.Context, p model.Passenger) error {
	return nil
}
func (f *fakeJanitorBackend) UpdatePassengerStatus(ctx context.Context, id string, status model.Status) error {
	return nil
}
func (f *fakeJanitorBackend) DeletePassenger(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}
func (f *fakeJanitorBackend) ListActivePassengers(ctx context.Context, opts contentapi.ListOptions) ([]model.Passenger, error) {
	return f.passengers, nil
}
func (f *fakeJanitorBackend) ListPassengers(ctx context.Context, opts contentapi.ListOptions) ([]model.Passenger, error) {
	return f.passengers, nil
}

func TestTick_PrunesExpiredPassengersAndStaleDevices(t *testing.T) {
	now := time.Now()
	backend := &fakeJanitorBackend{passengers: []model.Passenger{
		{PassengerID: "expired", ExpiresAt: now.Add(-time.Minute)},
		{PassengerID: "live", ExpiresAt: now.Add(time.Hour)},
	}}
	repo := repository.New(backend, nil)
	store := New()
	store.Heartbeat("stale-device", model.LatLon{}, now.Add(-200*time.Second))

	j := NewJanitor(store, repo, 120*time.Second, nil, nil)
	j.tick()

	assert.Equal(t, []string{"expired"}, backend.deleted)
	assert.Len(t, store.All(), 0)
}

func TestTick_NilRepoSkipsPassengerPruneWithoutPanic(t *testing.T) {
	store := New()
	j := NewJanitor(store, nil, 120*time.Second, nil, nil)
	assert.NotPanics(t, func() { j.tick() })
}

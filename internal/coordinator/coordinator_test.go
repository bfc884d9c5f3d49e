package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwmdev/transitspawn/internal/model"
	"github.com/jwmdev/transitspawn/internal/spawner"
)

type fakeSpawner struct {
	name       string
	persisted  int
	err        error
	calls      int32
	onSpawn    func()
}

func (f *fakeSpawner) Name() string { return f.name }
func (f *fakeSpawner) Spawn(ctx context.Context, t time.Time, dt time.Duration) ([]model.SpawnRequest, error) {
	return nil, f.err
}
func (f *fakeSpawner) SpawnAndStore(ctx context.Context, t time.Time, dt time.Duration) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.onSpawn != nil {
		f.onSpawn()
	}
	return f.persisted, f.err
}
func (f *fakeSpawner) Stats() spawner.Stats { return spawner.Stats{} }

func TestSingleCycle_RunsAllEnabledConcurrentlyAndAggregates(t *testing.T) {
	c := New(nil, nil)
	ok := &fakeSpawner{name: "route:R1", persisted: 3}
	failing := &fakeSpawner{name: "depot:D1", err: errors.New("boom")}
	c.Register(ok)
	c.Register(failing)

	summary := c.SingleCycle(context.Background(), time.Now(), time.Minute)
	assert.Equal(t, 3, summary.Persisted["route:R1"])
	assert.Equal(t, 0, summary.Persisted["depot:D1"])
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "depot:D1", summary.Errors[0].Spawner)
}

func TestSingleCycle_DisabledSpawnerIsSkipped(t *testing.T) {
	c := New(nil, nil)
	disabled := &fakeSpawner{name: "route:R2", persisted: 5}
	c.Register(disabled)
	c.SetEnabled("route:R2", false)

	summary := c.SingleCycle(context.Background(), time.Now(), time.Minute)
	_, ran := summary.Persisted["route:R2"]
	assert.False(t, ran)
}

func TestRunContinuous_StopsCleanlyWithoutOrphanGoroutines(t *testing.T) {
	c := New(nil, nil)
	var cycles int32
	fs := &fakeSpawner{name: "route:R3", onSpawn: func() { atomic.AddInt32(&cycles, 1) }}
	c.Register(fs)

	err := c.RunContinuous(context.Background(), 5*time.Millisecond, time.Minute, nil)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	c.Stop()
	c.Wait()

	ranAtStop := atomic.LoadInt32(&cycles)
	assert.Greater(t, ranAtStop, int32(0))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ranAtStop, atomic.LoadInt32(&cycles))
}

func TestRunContinuous_RejectsDoubleStart(t *testing.T) {
	c := New(nil, nil)
	c.Register(&fakeSpawner{name: "route:R4"})

	require.NoError(t, c.RunContinuous(context.Background(), time.Hour, time.Minute, nil))
	defer func() {
		c.Stop()
		c.Wait()
	}()

	err := c.RunContinuous(context.Background(), time.Hour, time.Minute, nil)
	assert.Error(t, err)
}

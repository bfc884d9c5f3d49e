// Package coordinator is the Spawn Coordinator (spec §4.7): it owns a set
// of named spawners, runs them concurrently either as a single cycle or on
// a continuous interval, and aggregates per-spawner statistics. The
// continuous-mode stop/wait handshake follows the teacher's
// sim.StartRunner (backend/sim/runner.go): a stopCh closed exactly once via
// sync.Once, and a completion goroutine that waits on a sync.WaitGroup
// before the run is considered done.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jwmdev/transitspawn/internal/metrics"
	"github.com/jwmdev/transitspawn/internal/spawner"
)

// Entry is one spawner registered with the coordinator, with its own
// enable flag (spec §4.7 "enable_<spawner-name>" toggles).
type Entry struct {
	Spawner spawner.Spawner
	Enabled bool
}

// CycleError pairs a spawner name with the error it raised during a cycle;
// one spawner failing never aborts the others.
type CycleError struct {
	Spawner string
	Err     error
}

// CycleSummary is the result of a single coordinator pass across every
// enabled spawner.
type CycleSummary struct {
	Started   time.Time
	Elapsed   time.Duration
	Persisted map[string]int
	Errors    []CycleError
}

// Coordinator drives a set of spawners (spec §4.7).
type Coordinator struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	log     *logrus.Entry
	metrics *metrics.Registry

	runMu   sync.Mutex
	running bool
	stop    func()
	wait    func()
}

// New builds an empty Coordinator. reg may be nil, in which case cycle
// statistics are tracked only via Stats(), not exported to Prometheus.
func New(log *logrus.Entry, reg *metrics.Registry) *Coordinator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Coordinator{entries: make(map[string]*Entry), log: log, metrics: reg}
}

// Register adds or replaces a spawner under its Name(), enabled by
// default.
func (c *Coordinator) Register(s spawner.Spawner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.Name()] = &Entry{Spawner: s, Enabled: true}
}

// SetEnabled toggles a registered spawner by name; unknown names are a
// no-op, since disabling a spawner the coordinator never heard of is not
// an error worth surfacing.
func (c *Coordinator) SetEnabled(name string, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[name]; ok {
		e.Enabled = enabled
	}
}

// Lookup returns the spawner registered under name, if any. Used by the
// HTTP facade's streaming endpoint to resolve a route id to its spawner
// without the coordinator's internal map leaking out.
func (c *Coordinator) Lookup(name string) (spawner.Spawner, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	return e.Spawner, true
}

// Stats reports cumulative spawned/error counts per registered spawner.
func (c *Coordinator) Stats() map[string]spawner.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]spawner.Stats, len(c.entries))
	for name, e := range c.entries {
		out[name] = e.Spawner.Stats()
	}
	return out
}

// SingleCycle runs every enabled spawner's SpawnAndStore concurrently and
// waits for all of them before returning (spec §4.7 "runs all enabled
// spawners concurrently, waits for all, captures per-spawner exceptions").
func (c *Coordinator) SingleCycle(ctx context.Context, t time.Time, dt time.Duration) CycleSummary {
	c.mu.RLock()
	enabled := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.Enabled {
			enabled = append(enabled, e)
		}
	}
	c.mu.RUnlock()

	summary := CycleSummary{Started: t, Persisted: make(map[string]int, len(enabled))}
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(enabled))
	start := time.Now()
	for _, e := range enabled {
		e := e
		go func() {
			defer wg.Done()
			n, err := e.Spawner.SpawnAndStore(ctx, t, dt)
			name := e.Spawner.Name()
			if c.metrics != nil {
				c.metrics.SpawnedTotal.WithLabelValues(name).Add(float64(n))
			}
			mu.Lock()
			defer mu.Unlock()
			summary.Persisted[name] = n
			if err != nil {
				summary.Errors = append(summary.Errors, CycleError{Spawner: name, Err: err})
				c.log.WithError(err).WithField("spawner", name).Error("spawn cycle failed")
				if c.metrics != nil {
					c.metrics.SpawnErrorsTotal.WithLabelValues(name).Inc()
				}
			}
		}()
	}
	wg.Wait()
	summary.Elapsed = time.Since(start)
	return summary
}

// RunContinuous starts a background loop calling SingleCycle every
// interval until Stop is called or ctx is cancelled. It is an error to
// call RunContinuous while already running.
func (c *Coordinator) RunContinuous(ctx context.Context, interval time.Duration, dt time.Duration, onCycle func(CycleSummary)) error {
	c.runMu.Lock()
	if c.running {
		c.runMu.Unlock()
		return errAlreadyRunning
	}
	c.running = true
	stopCh := make(chan struct{})
	var stopOnce sync.Once
	var wg sync.WaitGroup
	c.stop = func() { stopOnce.Do(func() { close(stopCh) }) }
	c.wait = wg.Wait
	c.runMu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			c.runMu.Lock()
			c.running = false
			c.runMu.Unlock()
		}()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case now := <-ticker.C:
				summary := c.SingleCycle(ctx, now, dt)
				if onCycle != nil {
					onCycle(summary)
				}
			}
		}
	}()
	return nil
}

// Stop requests the continuous loop to exit; it does not block. Calling
// Stop when not running is a no-op.
func (c *Coordinator) Stop() {
	c.runMu.Lock()
	stop := c.stop
	c.runMu.Unlock()
	if stop != nil {
		stop()
	}
}

// Wait blocks until the continuous loop has fully exited. Calling Wait
// when not running returns immediately.
func (c *Coordinator) Wait() {
	c.runMu.Lock()
	wait := c.wait
	c.runMu.Unlock()
	if wait != nil {
		wait()
	}
}

var errAlreadyRunning = &coordinatorError{"coordinator is already running a continuous loop"}

type coordinatorError struct{ msg string }

func (e *coordinatorError) Error() string { return e.msg }

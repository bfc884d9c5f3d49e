// Package telemetry is the minimal device-telemetry facade mounted by the
// unified backend (spec §6 C9): it accepts periodic heartbeats from field
// devices and tracks per-device last-seen state, pruned by the janitor
// (spec §5) rather than by any caller-driven delete.
package telemetry

import (
	"sync"
	"time"

	"github.com/jwmdev/transitspawn/internal/model"
)

// DefaultStaleAfter is the fallback STALE_AFTER_SEC (spec §5).
const DefaultStaleAfter = 120 * time.Second

// DeviceState is the last-known heartbeat for one device.
type DeviceState struct {
	DeviceID string        `json:"device_id"`
	Location model.LatLon  `json:"location"`
	LastSeen time.Time     `json:"last_seen"`
}

// Store holds per-device telemetry state under a single mutex: the device
// count in a deployment is small relative to passenger/route volume, so
// fine-grained per-key locking isn't warranted here.
type Store struct {
	mu      sync.RWMutex
	devices map[string]DeviceState
}

// New builds an empty Store.
func New() *Store {
	return &Store{devices: map[string]DeviceState{}}
}

// Heartbeat records a device's current position and timestamp, overwriting
// any prior state for that device.
func (s *Store) Heartbeat(deviceID string, loc model.LatLon, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[deviceID] = DeviceState{DeviceID: deviceID, Location: loc, LastSeen: at}
}

// Get returns the last-known state for deviceID.
func (s *Store) Get(deviceID string) (DeviceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[deviceID]
	return d, ok
}

// All returns every tracked device, in no particular order.
func (s *Store) All() []DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeviceState, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	return out
}

// PruneStale removes devices whose last heartbeat is older than
// now.Add(-staleAfter), returning the count removed.
func (s *Store) PruneStale(now time.Time, staleAfter time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-staleAfter)
	pruned := 0
	for id, d := range s.devices {
		if d.LastSeen.Before(cutoff) {
			delete(s.devices, id)
			pruned++
		}
	}
	return pruned
}

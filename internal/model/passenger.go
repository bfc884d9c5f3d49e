package model

import "time"

// SpawnContext distinguishes which spawner produced a SpawnRequest.
type SpawnContext string

const (
	ContextRoute SpawnContext = "ROUTE"
	ContextDepot SpawnContext = "DEPOT"
)

// Status is the passenger lifecycle state (spec §3 invariants).
type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusBoarded   Status = "BOARDED"
	StatusAlighted  Status = "ALIGHTED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// CanTransition reports whether a status change from s to next is legal.
// WAITING -> BOARDED -> ALIGHTED is the only monotonic path; EXPIRED and
// CANCELLED are terminal and reachable only from WAITING.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusWaiting:
		return next == StatusBoarded || next == StatusExpired || next == StatusCancelled
	case StatusBoarded:
		return next == StatusAlighted
	default:
		return false
	}
}

// SpawnRequest is produced by a spawner and consumed by a reservoir. It is
// owned by the spawner until pushed; thereafter the reservoir owns it until
// the repository confirms persistence (spec §3 Ownership/lifecycle).
type SpawnRequest struct {
	PassengerID string       `json:"passenger_id"`
	RouteID     string       `json:"route_id"`
	DepotID     string       `json:"depot_id,omitempty"`
	Spawn       LatLon       `json:"spawn"`
	Destination LatLon       `json:"destination"`
	SpawnTime   time.Time    `json:"spawn_time"`
	Context     SpawnContext `json:"spawn_context"`
	Method      string       `json:"generation_method"`
	Priority    float64      `json:"priority"`
}

// Passenger is the persisted record (spec §3).
type Passenger struct {
	PassengerID     string     `json:"passenger_id"`
	RouteID         string     `json:"route_id"`
	DepotID         string     `json:"depot_id,omitempty"`
	Spawn           LatLon     `json:"spawn"`
	Destination     LatLon     `json:"destination"`
	DestinationName string     `json:"destination_name,omitempty"`
	SpawnTime       time.Time  `json:"spawn_time"`
	ExpiresAt       time.Time  `json:"expires_at"`
	Status          Status     `json:"status"`
	Priority        int        `json:"priority"`
	RoutePositionM  *float64   `json:"route_position_m,omitempty"`
}

// DefaultPassengerTTL is the fallback expiration window (spec §3).
const DefaultPassengerTTL = 30 * time.Minute

// FromSpawnRequest materializes a Passenger from a SpawnRequest, applying
// the default TTL when ttl <= 0.
func FromSpawnRequest(req SpawnRequest, ttl time.Duration) Passenger {
	if ttl <= 0 {
		ttl = DefaultPassengerTTL
	}
	return Passenger{
		PassengerID: req.PassengerID,
		RouteID:     req.RouteID,
		DepotID:     req.DepotID,
		Spawn:       req.Spawn,
		Destination: req.Destination,
		SpawnTime:   req.SpawnTime,
		ExpiresAt:   req.SpawnTime.Add(ttl),
		Status:      StatusWaiting,
		Priority:    int(req.Priority),
	}
}

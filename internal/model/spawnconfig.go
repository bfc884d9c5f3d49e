package model

// SpawnConfig is a versioned, country- or route-scoped bundle of spawn
// tuning parameters (spec §3).
type SpawnConfig struct {
	Key     string `json:"key"`
	Version int    `json:"version"`

	// SpatialBase is also read as "passengers_per_building_per_hour" —
	// both names describe the same base rate (real >= 0).
	SpatialBase float64 `json:"spatial_base"`

	// HourlyRates[h] is the multiplier for hour h (0..23); missing/zero
	// entries default to 1 via HourlyRate().
	HourlyRates [24]float64 `json:"hourly_rates"`
	// DayMultipliers[d] is the multiplier for weekday d (0=Monday..6=Sunday);
	// missing/zero entries default to 1 via DayMultiplier().
	DayMultipliers [7]float64 `json:"day_multipliers"`

	SpawnRadiusMeters        float64 `json:"spawn_radius_meters"`
	DepotCatchmentRadiusM    float64 `json:"depot_catchment_radius_meters"`
	MinSpawnIntervalSeconds  int     `json:"min_spawn_interval_seconds"`
	MaxSpawnsPerCycle        int     `json:"max_spawns_per_cycle"`
}

// HourlyRate returns the configured multiplier for hour h, defaulting to 1
// when unset (spec §4.3: "documented defaults (1.0 where missing)").
func (c *SpawnConfig) HourlyRate(h int) float64 {
	if h < 0 || h > 23 || c.HourlyRates[h] == 0 {
		return 1
	}
	return c.HourlyRates[h]
}

// DayMultiplier returns the configured multiplier for weekday d (0=Monday),
// defaulting to 1 when unset.
func (c *SpawnConfig) DayMultiplier(d int) float64 {
	if d < 0 || d > 6 || c.DayMultipliers[d] == 0 {
		return 1
	}
	return c.DayMultipliers[d]
}

// Weekday maps a Go time.Weekday (0=Sunday) to the spec's convention
// (0=Monday .. 6=Sunday).
func Weekday(goWeekday int) int {
	// time.Sunday == 0 in the standard library; rotate so Monday == 0.
	return (goWeekday + 6) % 7
}

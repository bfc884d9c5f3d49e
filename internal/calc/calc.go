// Package calc is the pure spawn-count kernel (spec §4.1): temporal
// multipliers, effective rate, terminal population, route attractiveness,
// and the final Poisson draw. Every function here is deterministic modulo
// the Poisson sample, and none performs I/O.
package calc

import (
	"math"
	"math/rand"

	"github.com/jwmdev/transitspawn/internal/apperror"
	"github.com/jwmdev/transitspawn/internal/model"
)

// TemporalMultipliers resolves (base, hourly, day) for a config at a given
// hour/weekday, applying the documented 1.0 defaults.
func TemporalMultipliers(cfg *model.SpawnConfig, hour, weekday int) (base, hourly, day float64) {
	return cfg.SpatialBase, cfg.HourlyRate(hour), cfg.DayMultiplier(weekday)
}

// EffectiveRate multiplies the three temporal factors. It is 0 iff any
// factor is 0.
func EffectiveRate(base, hourly, day float64) float64 {
	return base * hourly * day
}

// TerminalPopulation is the expected passengers/hour emitted by a depot
// catchment of size bDepot at the given effective rate.
func TerminalPopulation(bDepot, effRate float64) float64 {
	return bDepot * effRate
}

// RouteAttractiveness is a route's fractional share of depot-originated
// demand. It is exactly 0 when bTotal is 0 (never NaN/Inf).
func RouteAttractiveness(bRoute, bTotal float64) float64 {
	if bTotal <= 0 {
		return 0
	}
	return bRoute / bTotal
}

// PassengersPerHour combines terminal population with route attractiveness.
func PassengersPerHour(terminalPopulation, attractiveness float64) float64 {
	return terminalPopulation * attractiveness
}

// Lambda converts a passengers/hour rate into the Poisson mean over a
// window of dtMinutes.
func Lambda(passengersPerHour, dtMinutes float64) float64 {
	return passengersPerHour * (dtMinutes / 60.0)
}

// validateInputs rejects negative or non-finite numbers, per spec §4.1.
func validateInputs(vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return apperror.ErrBadConfig
		}
	}
	return nil
}

// HybridResult carries every intermediate value plus the final draw, so
// callers and tests can inspect the full derivation (spec §4.1).
type HybridResult struct {
	Base, Hourly, Day       float64
	EffectiveRate           float64
	TerminalPopulation      float64
	RouteAttractiveness     float64
	PassengersPerHour       float64
	Lambda                  float64
	SpawnCount              int
}

// HybridInputs bundles the hybrid-model parameters.
type HybridInputs struct {
	Config      *model.SpawnConfig
	Hour        int
	Weekday     int
	BDepot      float64
	BRoute      float64
	BTotal      float64
	DtMinutes   float64
}

func (in HybridInputs) deriveCommon() (HybridResult, error) {
	if err := validateInputs(in.BDepot, in.BRoute, in.BTotal, in.DtMinutes); err != nil {
		return HybridResult{}, err
	}
	base, hourly, day := TemporalMultipliers(in.Config, in.Hour, in.Weekday)
	if err := validateInputs(base, hourly, day); err != nil {
		return HybridResult{}, err
	}
	eff := EffectiveRate(base, hourly, day)
	terminal := TerminalPopulation(in.BDepot, eff)
	attract := RouteAttractiveness(in.BRoute, in.BTotal)
	perHour := PassengersPerHour(terminal, attract)
	lambda := Lambda(perHour, in.DtMinutes)
	return HybridResult{
		Base: base, Hourly: hourly, Day: day,
		EffectiveRate: eff, TerminalPopulation: terminal,
		RouteAttractiveness: attract, PassengersPerHour: perHour, Lambda: lambda,
	}, nil
}

// CalculateHybridSpawn runs the full hybrid model (spec §4.1) and draws a
// Poisson sample for the final spawn count, using rng for the draw (nil
// makes PoissonDraw build a fresh source seeded with 1 for this one draw,
// so nil-rng draws are deterministic and repeat — callers typically hold a
// per-spawner *rand.Rand).
func CalculateHybridSpawn(in HybridInputs, rng *rand.Rand) (HybridResult, error) {
	res, err := in.deriveCommon()
	if err != nil {
		return HybridResult{}, err
	}
	res.SpawnCount = PoissonDraw(res.Lambda, rng)
	return res, nil
}

// ValidateHybridSpawn is the validation form: it returns every expectation
// (in particular PassengersPerHour and Lambda) without drawing.
func ValidateHybridSpawn(in HybridInputs) (HybridResult, error) {
	return in.deriveCommon()
}

// SpatialBaseInputs bundles the simpler depot-spawner model's parameters
// (spec §4.1 "spatial-base model"): lambda = spatialBase*hourly*day*(dt/60).
type SpatialBaseInputs struct {
	Config    *model.SpawnConfig
	Hour      int
	Weekday   int
	DtMinutes float64
}

// CalculateSpatialBaseLambda computes the Poisson mean for the simpler
// depot-spawner model.
func CalculateSpatialBaseLambda(in SpatialBaseInputs) (float64, error) {
	if err := validateInputs(in.DtMinutes); err != nil {
		return 0, err
	}
	base, hourly, day := TemporalMultipliers(in.Config, in.Hour, in.Weekday)
	if err := validateInputs(base, hourly, day); err != nil {
		return 0, err
	}
	eff := EffectiveRate(base, hourly, day)
	return Lambda(eff, in.DtMinutes), nil
}

// PoissonDraw samples from a Poisson(lambda) distribution. lambda <= 0
// always yields 0 (spec §4.1). For lambda above 30 it falls back to a
// normal approximation rounded to a non-negative integer, mirroring the
// teacher's Simulator.poisson (sim/simulator.go) large-mean shortcut.
func PoissonDraw(lambda float64, rng *rand.Rand) int {
	if lambda <= 0 {
		return 0
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if lambda > 30 {
		std := math.Sqrt(lambda)
		v := int(math.Round(rng.NormFloat64()*std + lambda))
		if v < 0 {
			return 0
		}
		return v
	}
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for p > l {
		k++
		p *= rng.Float64()
	}
	return k - 1
}

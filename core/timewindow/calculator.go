// Package timewindow turns a point estimate of arrival time into a
// confidence-bounded delivery interval, using historical travel time samples
// when enough are available.
package timewindow

import (
	"math"
	"sort"
	"time"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/logger"
	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/core/observation"
)

// MinSAASamples is the observation count below which callers must fall back
// from stochastic_saa to the simple heuristic. This is caller policy; the
// calculator computes with whatever samples it is given.
const MinSAASamples = 30

// baseBuffer is the heuristic half-window before confidence scaling.
const baseBuffer = 15 * time.Minute

// Penalties weight the window objective: wider windows, early arrivals and
// late arrivals each carry a cost. All must be positive.
type Penalties struct {
	Width float64 `json:"width"`
	Early float64 `json:"early"`
	Late  float64 `json:"late"`
}

// Params configures a window calculation.
type Params struct {
	ConfidenceLevel float64   `json:"confidence_level"`
	Penalties       Penalties `json:"penalties"`
	Method          string    `json:"method"`
}

// DefaultParams returns the parameters used when the caller supplies none.
func DefaultParams() Params {
	return Params{
		ConfidenceLevel: 0.95,
		Penalties:       Penalties{Width: 1, Early: 1, Late: 1},
	}
}

// Calculator computes time windows. It performs no I/O and is deterministic
// given its inputs and clock.
type Calculator struct {
	log logger.Logger
	now func() time.Time
}

// NewCalculator creates a Calculator.
func NewCalculator(log logger.Logger) *Calculator {
	return &Calculator{log: log, now: time.Now}
}

// SetClock overrides the clock. Intended for tests.
func (c *Calculator) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Compute validates the inputs and dispatches to the requested method. The
// returned window always carries violationProbability = 1 - confidence as
// the nominal, not empirically verified, target.
func (c *Calculator) Compute(expectedArrival time.Time, obs []model.RouteSegmentObservation, p Params) (model.TimeWindow, error) {
	if err := c.validate(expectedArrival, p); err != nil {
		return model.TimeWindow{}, err
	}
	var (
		w   model.TimeWindow
		err error
	)
	switch p.Method {
	case model.MethodSimpleHeuristic:
		w = c.simpleHeuristic(expectedArrival, p)
	case model.MethodStochasticSAA:
		w, err = c.stochasticSAA(expectedArrival, obs, p)
	case model.MethodDistributionallyRobust:
		return model.TimeWindow{}, faults.Unimplemented(model.MethodDistributionallyRobust)
	default:
		return model.TimeWindow{}, faults.Validation("method", "unknown method %q", p.Method)
	}
	if err != nil {
		return model.TimeWindow{}, err
	}
	w.ExpectedArrival = expectedArrival
	w.ConfidenceLevel = p.ConfidenceLevel
	w.ViolationProbability = 1 - p.ConfidenceLevel
	w.PenaltyWidth = p.Penalties.Width
	w.PenaltyEarly = p.Penalties.Early
	w.PenaltyLate = p.Penalties.Late
	w.WidthSeconds = w.UpperBound.Sub(w.LowerBound).Seconds()
	return w, nil
}

func (c *Calculator) validate(expectedArrival time.Time, p Params) error {
	now := c.now()
	if expectedArrival.IsZero() || expectedArrival.Before(now) {
		return faults.Validation("expected_arrival", "must be a valid, non-past timestamp")
	}
	if expectedArrival.After(now.Add(24 * time.Hour)) {
		c.log.Warnf("expected arrival %s is more than 24h in the future", expectedArrival.Format(time.RFC3339))
	}
	if p.ConfidenceLevel < 0.5 || p.ConfidenceLevel > 0.99 {
		return faults.Validation("confidence_level", "%f outside [0.5, 0.99]", p.ConfidenceLevel)
	}
	if p.Penalties.Width <= 0 || p.Penalties.Early <= 0 || p.Penalties.Late <= 0 {
		return faults.Validation("penalties", "all penalties must be positive")
	}
	return nil
}

// simpleHeuristic scales a fixed 15 minute buffer by the confidence level and
// skews it by the late/early penalty ratio: when late arrivals cost more,
// the window gives more slack on the late side and less on the early side.
func (c *Calculator) simpleHeuristic(expectedArrival time.Time, p Params) model.TimeWindow {
	confidenceFactor := 1 + (p.ConfidenceLevel-0.5)*2
	buffer := time.Duration(float64(baseBuffer) * confidenceFactor)
	asymmetry := math.Sqrt(p.Penalties.Late / p.Penalties.Early)
	lowerBuffer := time.Duration(float64(buffer) / asymmetry)
	upperBuffer := time.Duration(float64(buffer) * asymmetry)
	return model.TimeWindow{
		LowerBound:        expectedArrival.Add(-lowerBuffer),
		UpperBound:        expectedArrival.Add(upperBuffer),
		CalculationMethod: model.MethodSimpleHeuristic,
	}
}

// stochasticSAA estimates quantiles directly from the empirical sample
// distribution. The spread comes from the samples, but the center stays
// anchored to the caller-supplied expected arrival, hedging against a biased
// point estimate from the routing provider.
func (c *Calculator) stochasticSAA(expectedArrival time.Time, obs []model.RouteSegmentObservation, p Params) (model.TimeWindow, error) {
	if len(obs) == 0 {
		return model.TimeWindow{}, faults.Validation("observations", "stochastic_saa requires at least one observation")
	}
	summary := observation.Summarize(obs)
	cv := 0.0
	if summary.MeanActual != 0 {
		cv = summary.StdDevActual / summary.MeanActual
	}

	samples := make([]float64, len(obs))
	for i, o := range obs {
		samples[i] = o.ActualSeconds
	}
	sort.Float64s(samples)

	n := float64(len(samples))
	alpha := 1 - p.ConfidenceLevel
	lowerIdx := int(math.Floor(n * alpha / 2))
	upperIdx := int(math.Ceil(n*(1-alpha/2))) - 1
	// Indices may coincide for small n; the degenerate window is accepted.
	if upperIdx >= len(samples) {
		upperIdx = len(samples) - 1
	}

	lowerShift := samples[lowerIdx] - summary.MeanActual
	upperShift := samples[upperIdx] - summary.MeanActual
	return model.TimeWindow{
		LowerBound:             expectedArrival.Add(time.Duration(lowerShift * float64(time.Second))),
		UpperBound:             expectedArrival.Add(time.Duration(upperShift * float64(time.Second))),
		CalculationMethod:      model.MethodStochasticSAA,
		SampleCount:            len(samples),
		SampleStdDev:           summary.StdDevActual,
		CoefficientOfVariation: cv,
	}, nil
}

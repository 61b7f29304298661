package model

import "time"

// Calculation methods for delivery time windows.
const (
	MethodSimpleHeuristic        = "simple_heuristic"
	MethodStochasticSAA          = "stochastic_saa"
	MethodDistributionallyRobust = "distributionally_robust"
)

// TimeWindow is the confidence-bounded delivery interval committed for one
// order. Created once when the assignment is accepted and mutated exactly
// once more when the actual delivery outcome is recorded.
type TimeWindow struct {
	OrderID              string
	LowerBound           time.Time
	UpperBound           time.Time
	WidthSeconds         float64
	ExpectedArrival      time.Time
	ConfidenceLevel      float64
	ViolationProbability float64
	PenaltyWidth         float64
	PenaltyEarly         float64
	PenaltyLate          float64
	CalculationMethod    string

	// SAA diagnostics, zero unless CalculationMethod is stochastic_saa.
	SampleCount            int
	SampleStdDev           float64
	CoefficientOfVariation float64

	// Realized outcome, set by UpdatePerformance after delivery.
	ActualArrival    time.Time
	WasWithinWindow  bool
	DeviationSeconds float64
	Completed        bool
}

// Contains reports whether t falls inside the window, bounds inclusive.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.LowerBound) && !t.After(w.UpperBound)
}

package observation

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/courierflow/dispatch/core/model"
)

// Summary describes a sample set of travel time observations. StdDev is the
// population standard deviation (divide by N, not N-1).
type Summary struct {
	Count         int
	MeanActual    float64
	StdDevActual  float64
	MinActual     float64
	MaxActual     float64
	MeanDeviation float64
}

// Summarize computes summary statistics over the sample set. An empty input
// yields an all-zero summary rather than an error.
func Summarize(obs []model.RouteSegmentObservation) Summary {
	if len(obs) == 0 {
		return Summary{}
	}
	actual := make([]float64, len(obs))
	deviation := make([]float64, len(obs))
	for i, o := range obs {
		actual[i] = o.ActualSeconds
		deviation[i] = o.DeviationSeconds
	}
	return Summary{
		Count:         len(obs),
		MeanActual:    stat.Mean(actual, nil),
		StdDevActual:  stat.PopStdDev(actual, nil),
		MinActual:     floats.Min(actual),
		MaxActual:     floats.Max(actual),
		MeanDeviation: stat.Mean(deviation, nil),
	}
}

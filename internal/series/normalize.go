package series

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Scaling selects how Normalize rescales columns.
type Scaling string

// Supported scalings.
const (
	ScalingNone   Scaling = "none"
	ScalingMinMax Scaling = "minmax"
	ScalingZScore Scaling = "zscore"
)

// ParseScaling validates a scaling name.
func ParseScaling(s string) (Scaling, error) {
	switch Scaling(s) {
	case ScalingNone, ScalingMinMax, ScalingZScore:
		return Scaling(s), nil
	default:
		return "", fmt.Errorf("unknown scaling %q (allowed: none, minmax, zscore)", s)
	}
}

// Normalize returns a copy of obs with ScaledColumns rescaled.
// Min-max maps each column onto [0, 1]; z-score centres it and divides by the
// population standard deviation. A constant column scales to 0. Missing
// values stay missing and do not take part in the fit.
func Normalize(obs []Observation, scaling Scaling) []Observation {
	out := cloneObservations(obs)
	if scaling == ScalingNone || scaling == "" {
		return out
	}

	for _, c := range ScaledColumns {
		values := presentValues(out, c)
		if len(values) == 0 {
			continue
		}

		var shift, scale float64
		switch scaling {
		case ScalingMinMax:
			lo, hi := floats.Min(values), floats.Max(values)
			shift, scale = lo, hi-lo
		case ScalingZScore:
			mean, variance := stat.PopMeanVariance(values, nil)
			shift, scale = mean, math.Sqrt(variance)
		}

		for i := range out {
			v := out[i].Value(c)
			if math.IsNaN(v) {
				continue
			}
			if scale == 0 {
				out[i].set(c, 0)
				continue
			}
			out[i].set(c, (v-shift)/scale)
		}
	}
	return out
}

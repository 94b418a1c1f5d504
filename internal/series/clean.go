package series

import (
	"math"
	"sort"
)

// Rainfall classes assigned by Clean.
const (
	RainNone      = "none"
	RainLight     = "light"
	RainModerate  = "moderate"
	RainHeavy     = "heavy"
	RainVeryHeavy = "very_heavy"
)

// Level classes assigned by Clean, relative to each sensor's own distribution.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

const (
	lowerTercile = 0.33
	upperTercile = 0.66
)

// Clean drops observations with any missing value, then labels each remaining
// row with its rainfall class and its water-level class. Level classes use the
// 33rd and 66th percentiles of that sensor's levels.
func Clean(obs []Observation) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if o.complete() {
			o.RainClass = ClassifyRainfall(o.RR)
			out = append(out, o)
		}
	}

	levels := map[string][]float64{}
	for _, o := range out {
		levels[o.SensorID] = append(levels[o.SensorID], o.Level)
	}

	type terciles struct{ q33, q66 float64 }
	bounds := make(map[string]terciles, len(levels))
	for id, v := range levels {
		sort.Float64s(v)
		bounds[id] = terciles{q33: quantile(v, lowerTercile), q66: quantile(v, upperTercile)}
	}

	for i := range out {
		b := bounds[out[i].SensorID]
		out[i].LevelClass = ClassifyLevel(out[i].Level, b.q33, b.q66)
	}
	return out
}

// ClassifyRainfall maps a daily rainfall in mm to a class:
// 0 none, up to 10 light, up to 30 moderate, up to 50 heavy, above very heavy.
// NaN yields an empty class.
func ClassifyRainfall(rr float64) string {
	switch {
	case math.IsNaN(rr):
		return ""
	case rr == 0:
		return RainNone
	case rr <= 10:
		return RainLight
	case rr <= 30:
		return RainModerate
	case rr <= 50:
		return RainHeavy
	default:
		return RainVeryHeavy
	}
}

// ClassifyLevel places a level against the sensor's lower and upper terciles.
func ClassifyLevel(level, q33, q66 float64) string {
	switch {
	case level <= q33:
		return LevelLow
	case level <= q66:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// quantile returns the p-quantile of sorted values using linear interpolation
// between closest ranks, position (n-1)·p.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := float64(n-1) * p
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

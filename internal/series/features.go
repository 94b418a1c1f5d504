package series

import (
	"math"
	"sort"
)

// RainWindows are the rolling windows, in rows (days), for rainfall sums and
// rainy-day counts.
var RainWindows = []int{3, 7, 15}

// DefaultMaxLag is the number of daily lags added when none is configured.
const DefaultMaxLag = 7

// Shower types assigned by AddFeatures.
const (
	ShowerNone      = "none"
	ShowerModerate  = "moderate"
	ShowerHeavy     = "heavy"
	ShowerVeryHeavy = "very_heavy"
)

// ClassifyShower maps a daily rainfall in mm to a shower type:
// 0 none, up to 5 moderate, up to 20 heavy, above very heavy.
// Missing or negative rainfall yields an empty type.
func ClassifyShower(rr float64) string {
	switch {
	case math.IsNaN(rr) || rr < 0:
		return ""
	case rr == 0:
		return ShowerNone
	case rr <= 5:
		return ShowerModerate
	case rr <= 20:
		return ShowerHeavy
	default:
		return ShowerVeryHeavy
	}
}

// AddFeatures computes rainfall indicators and lags 1..maxLag for RR, TX and
// TN. Each sensor's rows are ordered by date and processed on their own, so no
// lag or window ever mixes two sensors. Sensors appear in order of first
// appearance in obs. Windows count rows, not calendar days, and a window
// holding no rainfall value yields NaN.
func AddFeatures(obs []Observation, maxLag int) []Observation {
	if maxLag < 0 {
		maxLag = 0
	}

	var order []string
	groups := map[string][]Observation{}
	for _, o := range obs {
		if _, ok := groups[o.SensorID]; !ok {
			order = append(order, o.SensorID)
		}
		groups[o.SensorID] = append(groups[o.SensorID], o)
	}

	out := make([]Observation, 0, len(obs))
	for _, id := range order {
		rows := groups[id]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
		out = append(out, withFeatures(rows, maxLag)...)
	}
	return out
}

func withFeatures(rows []Observation, maxLag int) []Observation {
	for i := range rows {
		f := &Features{
			Rainy:      rows[i].RR > 0,
			ShowerType: ClassifyShower(rows[i].RR),
			RainSum:    make(map[int]float64, len(RainWindows)),
			RainyDays:  make(map[int]int, len(RainWindows)),
			Lags:       make([]Lag, maxLag),
		}

		for _, w := range RainWindows {
			sum, present, rainy := 0.0, 0, 0
			for j := max(0, i-w+1); j <= i; j++ {
				rr := rows[j].RR
				if rr > 0 {
					rainy++
				}
				if !math.IsNaN(rr) {
					sum += rr
					present++
				}
			}
			if present == 0 {
				sum = math.NaN()
			}
			f.RainSum[w] = sum
			f.RainyDays[w] = rainy
		}

		for lag := 1; lag <= maxLag; lag++ {
			if i-lag < 0 {
				f.Lags[lag-1] = Lag{RR: math.NaN(), TX: math.NaN(), TN: math.NaN()}
				continue
			}
			prev := rows[i-lag]
			f.Lags[lag-1] = Lag{RR: prev.RR, TX: prev.TX, TN: prev.TN}
		}

		rows[i].Features = f
	}
	return rows
}

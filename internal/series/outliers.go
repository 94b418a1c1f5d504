package series

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultOutlierSigma is the number of standard deviations beyond which a
// level or temperature value is treated as an outlier.
const DefaultOutlierSigma = 3.0

// sigmaColumns are screened against mean ± k·σ. Rainfall is not: heavy rain
// is a real signal, only negative rainfall is rejected.
var sigmaColumns = []Column{ColumnLevel, ColumnTX, ColumnTN}

// RemoveOutliers drops rows where any of level, TX or TN lies outside
// mean ± sigma·σ, with the sample standard deviation computed over the whole
// input, and rows with negative rainfall. Bounds are computed once on the
// input, so removing one row never changes another column's bounds. Missing
// values are ignored when computing bounds and never flag a row.
func RemoveOutliers(obs []Observation, sigma float64) []Observation {
	type bound struct{ lo, hi float64 }
	bounds := make(map[Column]bound, len(sigmaColumns))
	for _, c := range sigmaColumns {
		values := presentValues(obs, c)
		if len(values) < 2 {
			bounds[c] = bound{lo: math.Inf(-1), hi: math.Inf(1)}
			continue
		}
		mean, std := stat.MeanStdDev(values, nil)
		bounds[c] = bound{lo: mean - sigma*std, hi: mean + sigma*std}
	}

	out := make([]Observation, 0, len(obs))
	for i := range obs {
		o := obs[i]
		if o.RR < 0 {
			continue
		}
		outlier := false
		for _, c := range sigmaColumns {
			v := o.Value(c)
			if v < bounds[c].lo || v > bounds[c].hi {
				outlier = true
				break
			}
		}
		if !outlier {
			out = append(out, o)
		}
	}
	return out
}

func presentValues(obs []Observation, c Column) []float64 {
	values := make([]float64, 0, len(obs))
	for i := range obs {
		if v := obs[i].Value(c); !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	return values
}

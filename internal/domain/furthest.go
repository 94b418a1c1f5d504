package domain

import "sort"

// DefaultFurthestCount is the number of associations reported as furthest.
const DefaultFurthestCount = 3

// SelectFurthest recomputes each association's distance from its coordinates
// and returns the n largest, descending. Equal distances keep input order.
// The input slice is not modified.
func SelectFurthest(assocs []Association, n int) []Association {
	if n <= 0 || len(assocs) == 0 {
		return []Association{}
	}

	ranked := make([]Association, len(assocs))
	for i, a := range assocs {
		a.DistanceKm = a.Sensor.Geo.DistanceKm(a.Station.Geo)
		ranked[i] = a
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm > ranked[j].DistanceKm
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

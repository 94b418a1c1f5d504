package domain

import (
	"log/slog"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
)

const (
	// kmPerDegreeLat is the length of one degree of latitude on the haversine sphere.
	kmPerDegreeLat = EarthRadiusKm * math.Pi / 180

	// indexMaxAbsLat is where longitude degrees shrink enough that the padded
	// search box stops being a safe bound. Lookups past it, or whose box would
	// cross the antimeridian, scan every station.
	indexMaxAbsLat = 80.0

	// indexPadding widens the search box so that rounding never drops a station
	// sitting exactly on the radius.
	indexPadding = 1.05

	pointTolerance = 1e-9
)

// StationIndex answers closest-station lookups with an R-tree over station
// coordinates. It returns exactly what FindClosestStation returns for the same
// station slice, ties included; the tree only narrows the candidate set.
type StationIndex struct {
	stations []Station
	tree     *rtreego.Rtree
}

type indexedStation struct {
	pos  int
	rect rtreego.Rect
}

func (s *indexedStation) Bounds() rtreego.Rect { return s.rect }

// NewStationIndex builds an index over stations. The slice is copied.
// Stations without finite coordinates stay out of the tree; no sensor can be
// within range of them.
func NewStationIndex(stations []Station) *StationIndex {
	cp := make([]Station, len(stations))
	copy(cp, stations)

	tree := rtreego.NewTree(2, 25, 50)
	for i, st := range cp {
		if !st.Geo.Finite() {
			continue
		}
		// Points are stored as (lon, lat).
		tree.Insert(&indexedStation{
			pos:  i,
			rect: rtreego.Point{st.Geo.Lon, st.Geo.Lat}.ToRect(pointTolerance),
		})
	}

	return &StationIndex{stations: cp, tree: tree}
}

// Len returns the number of indexed stations.
func (x *StationIndex) Len() int { return len(x.stations) }

// FindClosest behaves like FindClosestStation over the indexed stations.
func (x *StationIndex) FindClosest(sensor Sensor, logger *slog.Logger) (Station, float64, bool) {
	candidates := x.candidates(sensor.Geo)
	idx, dist := scanClosest(sensor, candidates)
	if idx < 0 {
		logNoStation(logger, sensor)
		return Station{}, 0, false
	}
	return candidates[idx], dist, true
}

// BuildAssociations behaves like the package-level BuildAssociations.
func (x *StationIndex) BuildAssociations(sensors []Sensor, logger *slog.Logger) []Association {
	assocs, _ := buildWith(sensors, func(s Sensor) (Station, float64, bool) {
		return x.FindClosest(s, logger)
	})
	return assocs
}

// RunAssociation behaves like the package-level RunAssociation.
func (x *StationIndex) RunAssociation(sensors []Sensor, furthestN int, logger *slog.Logger) Run {
	return newRun(sensors, x.stations, furthestN, func(s Sensor) (Station, float64, bool) {
		return x.FindClosest(s, logger)
	})
}

// candidates returns the stations inside the padded search box around g,
// in original input order so the scan keeps first-seen tie breaking.
func (x *StationIndex) candidates(g Geo) []Station {
	if !g.Finite() || math.Abs(g.Lat) > indexMaxAbsLat {
		return x.stations
	}

	dLat := MaxAssociationRadiusKm / kmPerDegreeLat * indexPadding
	dLon := MaxAssociationRadiusKm / (kmPerDegreeLat * math.Cos(toRadians(g.Lat))) * indexPadding
	if g.Lon-dLon < -180 || g.Lon+dLon > 180 {
		return x.stations
	}
	box, err := rtreego.NewRect(
		rtreego.Point{g.Lon - dLon, g.Lat - dLat},
		[]float64{2 * dLon, 2 * dLat},
	)
	if err != nil {
		return x.stations
	}

	hits := x.tree.SearchIntersect(box)
	positions := make([]int, 0, len(hits))
	for _, h := range hits {
		positions = append(positions, h.(*indexedStation).pos)
	}
	sort.Ints(positions)

	out := make([]Station, len(positions))
	for i, p := range positions {
		out[i] = x.stations[p]
	}
	return out
}

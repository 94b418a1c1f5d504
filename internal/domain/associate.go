package domain

import (
	"log/slog"
	"math"
)

// MaxAssociationRadiusKm is the largest sensor-to-station distance accepted.
const MaxAssociationRadiusKm = 10.0

// FindClosestStation scans stations in order and returns the nearest one within
// MaxAssociationRadiusKm, with its distance. A candidate replaces the current
// best only when strictly closer, so the first of several equidistant stations
// is kept. When nothing qualifies a warning naming the sensor is logged and
// ok is false.
func FindClosestStation(sensor Sensor, stations []Station, logger *slog.Logger) (station Station, distanceKm float64, ok bool) {
	idx, dist := scanClosest(sensor, stations)
	if idx < 0 {
		logNoStation(logger, sensor)
		return Station{}, 0, false
	}
	return stations[idx], dist, true
}

// BuildAssociations pairs every sensor with its closest station, in sensor
// input order. Sensors without a station in range are skipped.
func BuildAssociations(sensors []Sensor, stations []Station, logger *slog.Logger) []Association {
	assocs, _ := buildWith(sensors, func(s Sensor) (Station, float64, bool) {
		return FindClosestStation(s, stations, logger)
	})
	return assocs
}

// RunAssociation runs the whole association pass: pairing, the consistency
// filter and the furthest-N selection. The returned Run has no ID; callers
// assign one.
func RunAssociation(sensors []Sensor, stations []Station, furthestN int, logger *slog.Logger) Run {
	return newRun(sensors, stations, furthestN, func(s Sensor) (Station, float64, bool) {
		return FindClosestStation(s, stations, logger)
	})
}

type closestFunc func(Sensor) (Station, float64, bool)

func newRun(sensors []Sensor, stations []Station, furthestN int, find closestFunc) Run {
	assocs, unassociated := buildWith(sensors, find)
	return Run{
		GeneratedAt:  clock.Now().UTC(),
		SensorCount:  len(sensors),
		StationCount: len(stations),
		Associations: assocs,
		Consistent:   FilterConsistentMeasurements(assocs),
		Furthest:     SelectFurthest(assocs, furthestN),
		Unassociated: unassociated,
	}
}

func buildWith(sensors []Sensor, find closestFunc) ([]Association, []Sensor) {
	assocs := make([]Association, 0, len(sensors))
	var unassociated []Sensor
	for _, s := range sensors {
		station, dist, ok := find(s)
		if !ok {
			unassociated = append(unassociated, s)
			continue
		}
		assocs = append(assocs, Association{Sensor: s, Station: station, DistanceKm: dist})
	}
	return assocs, unassociated
}

// scanClosest returns the index and distance of the nearest station within the
// radius, or -1 when none qualifies.
func scanClosest(sensor Sensor, stations []Station) (int, float64) {
	best := -1
	minDist := math.Inf(1)
	for i := range stations {
		d := sensor.Geo.DistanceKm(stations[i].Geo)
		if d < minDist && d <= MaxAssociationRadiusKm {
			minDist = d
			best = i
		}
	}
	return best, minDist
}

func logNoStation(logger *slog.Logger, sensor Sensor) {
	if logger == nil {
		return
	}
	logger.Warn("no weather station within radius",
		"sensor_id", sensor.ID,
		"sensor_name", sensor.Name,
		"radius_km", MaxAssociationRadiusKm,
	)
}

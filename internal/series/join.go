package series

import (
	"time"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
)

type stationDay struct {
	station string
	date    time.Time
}

// Join pairs each level reading with the weather recorded on the same day at
// the station associated with its sensor. Readings whose sensor has no
// association, or whose day has no weather row, are dropped. Output follows
// level-reading order; several weather rows for the same station and day each
// produce an observation, in weather order.
func Join(levels []LevelReading, weather []WeatherReading, assocs []domain.Association) []Observation {
	stationFor := make(map[string]string, len(assocs))
	for _, a := range assocs {
		if _, seen := stationFor[a.Sensor.ID]; !seen {
			stationFor[a.Sensor.ID] = a.Station.Name
		}
	}

	byDay := make(map[stationDay][]WeatherReading, len(weather))
	for _, w := range weather {
		k := stationDay{station: w.StationName, date: w.Date}
		byDay[k] = append(byDay[k], w)
	}

	out := make([]Observation, 0, len(levels))
	for _, lv := range levels {
		station, ok := stationFor[lv.SensorID]
		if !ok {
			continue
		}
		for _, w := range byDay[stationDay{station: station, date: lv.Date}] {
			out = append(out, Observation{
				SensorID:    lv.SensorID,
				SensorName:  lv.SensorName,
				StationName: station,
				Date:        lv.Date,
				Level:       lv.Level,
				Depth:       lv.Depth,
				RR:          w.RR,
				TX:          w.TX,
				TN:          w.TN,
				TM:          w.TM,
			})
		}
	}
	return out
}

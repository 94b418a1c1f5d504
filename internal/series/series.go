// Package series prepares the daily groundwater/weather time series used for
// analysis: it joins level readings with the associated station's weather,
// drops incomplete rows and outliers, scales values and derives rainfall
// features and lags.
//
// Missing numeric values are represented as NaN throughout.
package series

import (
	"math"
	"time"
)

// LevelReading is one daily water-table measurement from a piezometer.
type LevelReading struct {
	SensorID   string
	SensorName string
	Date       time.Time
	Level      float64 // niveau_nappe_eau, metres NGF
	Depth      float64 // profondeur_nappe, metres below ground
}

// WeatherReading is one day of station climatology.
type WeatherReading struct {
	StationName string
	Date        time.Time
	RR          float64 // rainfall, mm
	TX          float64 // max temperature, °C
	TN          float64 // min temperature, °C
	TM          float64 // mean temperature, °C
}

// Observation is a level reading joined with the same day's weather at the
// sensor's associated station, plus derived fields filled by later steps.
type Observation struct {
	SensorID    string
	SensorName  string
	StationName string
	Date        time.Time

	Level float64
	Depth float64
	RR    float64
	TX    float64
	TN    float64
	TM    float64

	RainClass  string // set by Clean
	LevelClass string // set by Clean

	Features *Features // set by AddFeatures
}

// Features holds the rainfall indicators and lagged weather for one observation.
type Features struct {
	Rainy      bool
	ShowerType string
	RainSum    map[int]float64 // rolling RR sum by window (days)
	RainyDays  map[int]int     // rolling count of rainy days by window
	Lags       []Lag           // Lags[i] is the value i+1 days earlier
}

// Lag is the weather observed a given number of days before an observation.
type Lag struct {
	RR float64
	TX float64
	TN float64
}

// Column identifies a numeric observation field.
type Column string

// Numeric columns subject to outlier removal and scaling.
const (
	ColumnLevel Column = "niveau_nappe_eau"
	ColumnRR    Column = "RR"
	ColumnTX    Column = "TX"
	ColumnTN    Column = "TN"
)

// ScaledColumns are the columns Normalize rescales.
var ScaledColumns = []Column{ColumnLevel, ColumnRR, ColumnTX, ColumnTN}

// Value returns the observation's value for c, or NaN for an unknown column.
func (o *Observation) Value(c Column) float64 {
	switch c {
	case ColumnLevel:
		return o.Level
	case ColumnRR:
		return o.RR
	case ColumnTX:
		return o.TX
	case ColumnTN:
		return o.TN
	default:
		return math.NaN()
	}
}

func (o *Observation) set(c Column, v float64) {
	switch c {
	case ColumnLevel:
		o.Level = v
	case ColumnRR:
		o.RR = v
	case ColumnTX:
		o.TX = v
	case ColumnTN:
		o.TN = v
	}
}

// complete reports whether every measured value is present.
func (o *Observation) complete() bool {
	for _, v := range []float64{o.Level, o.Depth, o.RR, o.TX, o.TN, o.TM} {
		if math.IsNaN(v) {
			return false
		}
	}
	return o.SensorID != "" && o.StationName != "" && !o.Date.IsZero()
}

func cloneObservations(obs []Observation) []Observation {
	out := make([]Observation, len(obs))
	copy(out, obs)
	return out
}

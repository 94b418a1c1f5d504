package domain

import (
	"strings"
	"time"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair in decimal degrees.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Sensor is a groundwater monitoring well (piézomètre).
type Sensor struct {
	ID               string `json:"code_bss"`
	Name             string `json:"name"`
	StartDate        string `json:"start_date"` // as published, see ParseDate
	EndDate          string `json:"end_date"`
	MeasurementCount int    `json:"measurement_count"`
	Geo              Geo    `json:"geo"`

	// Listing attributes used by SelectSensors.
	Department  string `json:"department,omitempty"`
	Commune     string `json:"commune,omitempty"`
	AquiferBody string `json:"aquifer_body,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"` // as published, see ParseTimestamp
}

// Station is a weather station producing daily rainfall and temperature records.
type Station struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Geo  Geo    `json:"geo"`
}

// Association pairs a sensor with its nearest qualifying station.
// Sensor and Station are value copies; an Association is never mutated once built.
type Association struct {
	Sensor     Sensor  `json:"sensor"`
	Station    Station `json:"station"`
	DistanceKm float64 `json:"distance_km"`
}

// Run is the outcome of one association pass over a sensor and station set.
type Run struct {
	ID           string        `json:"id"`
	GeneratedAt  time.Time     `json:"generated_at"`
	SensorCount  int           `json:"sensor_count"`
	StationCount int           `json:"station_count"`
	Associations []Association `json:"associations"`
	Consistent   []Association `json:"consistent"`
	Furthest     []Association `json:"furthest"`
	Unassociated []Sensor      `json:"unassociated,omitempty"`
}

// dateLayouts are tried in order. The date-time forms appear when an upstream
// tool re-exports the listing with timestamps attached.
var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006/01/02",
	"20060102",
}

// ParseDate parses a calendar date, truncating any time of day. The second
// return value is false when the text is empty or matches no known layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseTimestamp parses a listing update stamp such as
// "Tue Oct 08 09:12:02 CEST 2024", falling back to the ParseDate layouts.
// Zone abbreviations are not resolved, which is enough for ordering.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.UnixDate, s); err == nil {
		return t, true
	}
	return ParseDate(s)
}

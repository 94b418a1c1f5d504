package domain

import (
	"sort"
	"strings"
)

// DefaultDepartment is the department the raw sensor listing is narrowed to.
const DefaultDepartment = "Hérault"

// MeasurementSpanDays returns the number of days between the sensor's first
// and last measurement. ok is false when either date is unparseable.
func MeasurementSpanDays(s Sensor) (days int, ok bool) {
	start, okStart := ParseDate(s.StartDate)
	end, okEnd := ParseDate(s.EndDate)
	if !okStart || !okEnd {
		return 0, false
	}
	return int(end.Sub(start).Hours() / 24), true
}

// SelectSensors narrows a raw listing to the best sensor of each aquifer body.
//
// Sensors outside department (compared case-insensitively; empty keeps all)
// without an aquifer body or without finite coordinates are dropped. The rest are ranked by measurement
// span, then measurement count, then most recent update, all descending;
// sensors with unknown dates rank after those with known ones and equal ranks
// keep input order. The first sensor of each aquifer body is kept, in rank
// order. The input slice is not modified.
func SelectSensors(sensors []Sensor, department string) []Sensor {
	department = strings.TrimSpace(department)

	type ranked struct {
		Sensor
		span      int
		spanOK    bool
		updated   int64
		updatedOK bool
	}
	candidates := make([]ranked, 0, len(sensors))
	for _, s := range sensors {
		if department != "" && !strings.EqualFold(strings.TrimSpace(s.Department), department) {
			continue
		}
		if strings.TrimSpace(s.AquiferBody) == "" || !s.Geo.Finite() {
			continue
		}
		r := ranked{Sensor: s}
		r.span, r.spanOK = MeasurementSpanDays(s)
		if t, ok := ParseTimestamp(s.UpdatedAt); ok {
			r.updated, r.updatedOK = t.Unix(), true
		}
		candidates = append(candidates, r)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.spanOK != b.spanOK {
			return a.spanOK
		}
		if a.span != b.span {
			return a.span > b.span
		}
		if a.MeasurementCount != b.MeasurementCount {
			return a.MeasurementCount > b.MeasurementCount
		}
		if a.updatedOK != b.updatedOK {
			return a.updatedOK
		}
		return a.updated > b.updated
	})

	seen := make(map[string]bool, len(candidates))
	out := make([]Sensor, 0, len(candidates))
	for _, c := range candidates {
		body := strings.TrimSpace(c.AquiferBody)
		if seen[body] {
			continue
		}
		seen[body] = true
		out = append(out, c.Sensor)
	}
	return out
}

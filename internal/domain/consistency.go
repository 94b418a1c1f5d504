package domain

// Bounds on measurements per elapsed day for a sensor to count as consistent.
const (
	MinConsistentDensity = 0.8
	MaxConsistentDensity = 1.2
)

// MeasurementDensity returns the sensor's measurement count divided by the
// number of calendar days in its period, both ends included. ok is false when
// either date is unparseable or the period is empty.
func MeasurementDensity(s Sensor) (density float64, ok bool) {
	start, okStart := ParseDate(s.StartDate)
	end, okEnd := ParseDate(s.EndDate)
	if !okStart || !okEnd {
		return 0, false
	}

	days := int(end.Sub(start).Hours()/24) + 1
	if days <= 0 {
		return 0, false
	}
	return float64(s.MeasurementCount) / float64(days), true
}

// HasConsistentMeasurements reports whether the sensor recorded roughly one
// measurement per day, within ±20%.
func HasConsistentMeasurements(s Sensor) bool {
	density, ok := MeasurementDensity(s)
	if !ok {
		return false
	}
	return density >= MinConsistentDensity && density <= MaxConsistentDensity
}

// FilterConsistentMeasurements keeps the associations whose sensor has
// consistent measurements, preserving order.
func FilterConsistentMeasurements(assocs []Association) []Association {
	out := make([]Association, 0, len(assocs))
	for _, a := range assocs {
		if HasConsistentMeasurements(a.Sensor) {
			out = append(out, a)
		}
	}
	return out
}

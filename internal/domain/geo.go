package domain

import "math"

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// points given in decimal degrees. Inputs are not validated.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, lambda1 := toRadians(lat1), toRadians(lon1)
	phi2, lambda2 := toRadians(lat2), toRadians(lon2)
	dPhi := phi2 - phi1
	dLambda := lambda2 - lambda1

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceKm is the haversine distance from g to other.
func (g Geo) DistanceKm(other Geo) float64 {
	return HaversineKm(g.Lat, g.Lon, other.Lat, other.Lon)
}

// Finite reports whether both coordinates are real numbers.
func (g Geo) Finite() bool {
	return !math.IsNaN(g.Lat) && !math.IsNaN(g.Lon) && !math.IsInf(g.Lat, 0) && !math.IsInf(g.Lon, 0)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

package geo

import (
	"math"

	"roadsafe/internal/model"
)

// earthRadiusMeters is the spherical approximation used by the relay as well.
const earthRadiusMeters = 6371000

// Distance returns the great-circle distance between two positions in meters
// (haversine). Accurate enough for hazard-scale proximity; not geodesic-exact.
func Distance(a, b model.Position) float64 {
	phi1 := radians(a.Latitude)
	phi2 := radians(b.Latitude)
	dPhi := radians(b.Latitude - a.Latitude)
	dLambda := radians(b.Longitude - a.Longitude)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

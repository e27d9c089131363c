package geo

import (
	"math"
	"time"
)

// EarthRadius is the mean Earth radius in meters used for all distance math.
const EarthRadius = 6371000.0

// GeoPoint is a single location fix.
type GeoPoint struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Accuracy  float64   `json:"accuracy,omitempty"` // meters, 0 when unknown
}

// Valid reports whether the coordinates are finite and within range.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// CircularZone is a circle on the Earth's surface. It backs no-tag zones as well as
// territory and ambush footprints.
type CircularZone struct {
	ID           string   `json:"id"`
	OwnerID      string   `json:"owner_id,omitempty"`
	Center       GeoPoint `json:"center"`
	RadiusMeters float64  `json:"radius_meters"`
	Name         string   `json:"name"`
	Active       bool     `json:"active"`
}

// DistanceMeters returns the great-circle distance between a and b using the
// haversine formula. Invalid coordinates yield NaN.
func DistanceMeters(a, b GeoPoint) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLng := toRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	// Rounding can push h slightly past 1 near antipodal points.
	h = math.Min(1, math.Max(0, h))

	return EarthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// IsWithin reports whether p lies inside z. The boundary is inclusive and a NaN
// distance is never contained.
func IsWithin(p GeoPoint, z CircularZone) bool {
	return DistanceMeters(p, z.Center) <= z.RadiusMeters
}

// Offset returns p moved by the given distances along north and east, using a local
// tangent-plane approximation. Good enough for the few hundred meters game zones span.
func Offset(p GeoPoint, northMeters, eastMeters float64) GeoPoint {
	dLat := northMeters / EarthRadius
	dLng := eastMeters / (EarthRadius * math.Cos(toRadians(p.Latitude)))

	out := p
	out.Latitude = p.Latitude + toDegrees(dLat)
	out.Longitude = p.Longitude + toDegrees(dLng)
	return out
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

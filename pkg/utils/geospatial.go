package utils

import (
	"math"

	"github.com/mwangikev/transitgo-backend/internal/models"
)

// CorridorRadiusMeters is how far a bus may stray from the nearest route
// waypoint before it counts as off-route.
const CorridorRadiusMeters = 300.0

// HaversineDistance calculates the distance between two points on Earth
// using the Haversine formula. Returns distance in kilometers.
func HaversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371 // Earth's radius in kilometers

	// Convert degrees to radians
	lat1Rad := lat1 * math.Pi / 180
	lng1Rad := lng1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lng2Rad := lng2 * math.Pi / 180

	// Haversine formula
	dlat := lat2Rad - lat1Rad
	dlng := lng2Rad - lng1Rad

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dlng/2)*math.Sin(dlng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// DistanceMeters is HaversineDistance in meters.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineDistance(lat1, lng1, lat2, lng2) * 1000
}

// IsWithinRadius checks if a point is within a specified radius of another point
func IsWithinRadius(centerLat, centerLng, pointLat, pointLng, radiusKm float64) bool {
	distance := HaversineDistance(centerLat, centerLng, pointLat, pointLng)
	return distance <= radiusKm
}

// WithinCorridor reports whether the position lies within radiusMeters of
// at least one route waypoint. This is a point-to-waypoint proximity test:
// there is no interpolation between waypoints and no sequence check along
// the route. An empty waypoint list means no corridor is defined and the
// check reports false.
func WithinCorridor(lat, lng float64, waypoints []models.Waypoint, radiusMeters float64) bool {
	for _, wp := range waypoints {
		if DistanceMeters(lat, lng, wp.Lat, wp.Lng) <= radiusMeters {
			return true
		}
	}
	return false
}

// ValidCoordinates checks latitude/longitude ranges.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

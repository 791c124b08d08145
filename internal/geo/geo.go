// Package geo maps a phone location to a commute zone.
package geo

import "math"

// Point is a latitude/longitude pair in degrees
type Point struct {
	Lat, Lon float64
}

var (
	Home   = Point{40.64101, -74.38390}
	Penn   = Point{40.7506, -73.9935}
	Office = Point{40.7581, -73.9700}
	Newark = Point{40.7347, -74.1641}
)

// ZoneRadiusKm is how close a location must be to count as in a zone
const ZoneRadiusKm = 10.0

// Zone names
const (
	ZoneHome    = "home"
	ZoneNYC     = "nyc"
	ZoneNewark  = "newark"
	ZoneUnknown = "unknown"
)

// Zone returns the zone containing lat, lon. Home wins over NYC, which wins
// over Newark.
func Zone(lat, lon float64) string {
	switch {
	case Within(lat, lon, Home, ZoneRadiusKm):
		return ZoneHome
	case Within(lat, lon, Penn, ZoneRadiusKm) || Within(lat, lon, Office, ZoneRadiusKm):
		return ZoneNYC
	case Within(lat, lon, Newark, ZoneRadiusKm):
		return ZoneNewark
	}
	return ZoneUnknown
}

// Within reports whether lat, lon is at most km from p
func Within(lat, lon float64, p Point, km float64) bool {
	return Distance(lat, lon, p.Lat, p.Lon) <= km
}

// Distance calculates the distance in kilometers between two points using
// the Haversine formula
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Earth's radius in kilometers

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

package capture

import "math"

// EarthRadiusM is Earth's radius in meters for the Haversine calculation.
const EarthRadiusM = 6371000.0

// HaversineMeters calculates the great-circle distance between two fixes.
func HaversineMeters(a, b Fix) float64 {
	const degToRad = math.Pi / 180
	dLat := (b.Lat - a.Lat) * degToRad
	dLon := (b.Lon - a.Lon) * degToRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*degToRad)*math.Cos(b.Lat*degToRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusM * c
}

// WithinRadius reports whether a fix lies inside the given radius of a site.
// The server owns the geofencing decision; this is only used to warn about
// drifting stations.
func WithinRadius(site, fix Fix, radiusM float64) bool {
	return HaversineMeters(site, fix) <= radiusM
}

package utils

import "math"

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle (haversine) distance between two coordinates.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// BoundingBox returns the lat/lng rectangle that contains every point within radius meters of the center.
// Near the poles the box widens to the full longitude range. When the box crosses the antimeridian the
// longitude bounds wrap, so minLng > maxLng; use InLngRange to test against them.
func BoundingBox(lat, lng, radius float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radius / earthRadiusMeters * 180 / math.Pi
	minLat = math.Max(-90, lat-dLat)
	maxLat = math.Min(90, lat+dLat)

	cosLat := math.Cos(toRadians(lat))
	if cosLat < 1e-6 || maxLat >= 90 || minLat <= -90 {
		return minLat, maxLat, -180, 180
	}
	dLng := radius / (earthRadiusMeters * cosLat) * 180 / math.Pi
	if dLng >= 180 {
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, wrapLng(lng - dLng), wrapLng(lng + dLng)
}

// InLngRange reports whether lng lies between the bounds returned by BoundingBox.
func InLngRange(lng, minLng, maxLng float64) bool {
	if minLng <= maxLng {
		return lng >= minLng && lng <= maxLng
	}
	return lng >= minLng || lng <= maxLng
}

func wrapLng(lng float64) float64 {
	switch {
	case lng < -180:
		return lng + 360
	case lng > 180:
		return lng - 360
	}
	return lng
}

// EscapeLike escapes the LIKE wildcards in s so it matches literally.
func EscapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\\' || r == '%' || r == '_' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

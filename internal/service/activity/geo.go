package activity

import (
	"math"
	"math/rand/v2"
)

const metersPerDegree = 111320.0

func defaultRand() float64 { return rand.Float64() }

// jitterPoint moves (lat, lng) by a random distance in [meters/2, meters]
// along a random bearing. The result is clamped to valid latitudes and
// wrapped into [-180, 180] longitude.
func jitterPoint(lat, lng, meters float64, rnd func() float64) (float64, float64) {
	if meters <= 0 {
		return lat, lng
	}
	dist := meters/2 + rnd()*meters/2
	bearing := rnd() * 2 * math.Pi

	dLat := dist * math.Cos(bearing) / metersPerDegree
	outLat := math.Max(-90, math.Min(90, lat+dLat))

	outLng := lng
	if c := math.Cos(lat * math.Pi / 180); c > 1e-6 {
		outLng = wrapLongitude(lng + dist*math.Sin(bearing)/(metersPerDegree*c))
	}
	return outLat, outLng
}

func wrapLongitude(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// HaversineKm returns the great-circle distance between two lat/lng pairs in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return orbgeo.DistanceHaversine(orb.Point{lng1, lat1}, orb.Point{lng2, lat2}) / 1000
}

// BearingDeg returns the initial bearing (forward azimuth) from the first point
// to the second, normalised to [0, 360).
func BearingDeg(lat1, lng1, lat2, lng2 float64) float64 {
	b := orbgeo.Bearing(orb.Point{lng1, lat1}, orb.Point{lng2, lat2})
	return wrap360(b)
}

func wrap360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

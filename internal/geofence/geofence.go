// Package geofence computes great-circle distances and advisory mode-switch
// suggestions from registered home and work locations.
package geofence

import (
	"math"

	"twido/pkg/domain"
)

const (
	earthRadiusKm = 6371.0
	// ProximityKm is the radius inside which a registered location counts as reached.
	ProximityKm = 0.1
)

// DistanceKm returns the haversine distance between a and b in kilometres.
func DistanceKm(a, b domain.Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// SuggestSwitch returns the mode the user should be offered, if any. Home takes
// precedence over work. The suggestion is advisory; callers apply it only after
// explicit confirmation.
func SuggestSwitch(current domain.Coordinate, reg domain.LocationRegistration, mode domain.Mode) (domain.Mode, bool) {
	if reg.Home != nil && mode == domain.ModeWork && DistanceKm(current, *reg.Home) < ProximityKm {
		return domain.ModePrivate, true
	}
	if reg.Work != nil && mode == domain.ModePrivate && DistanceKm(current, *reg.Work) < ProximityKm {
		return domain.ModeWork, true
	}
	return "", false
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

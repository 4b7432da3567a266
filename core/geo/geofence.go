package geo

// Geofence is a circular boundary around a school.
type Geofence struct {
	Center       Point
	RadiusMeters float64
	Enabled      bool
}

type Result struct {
	WithinRange    bool
	DistanceMeters float64
}

// Evaluate checks pos against fence. A disabled fence always lets the position through.
func Evaluate(pos Point, fence Geofence) Result {
	if !fence.Enabled {
		return Result{WithinRange: true}
	}
	return Result{
		WithinRange:    WithinRadius(pos, fence.Center, fence.RadiusMeters),
		DistanceMeters: DistanceBetween(pos, fence.Center),
	}
}

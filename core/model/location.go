package model

import "math"

// Location is a named node of the facility map.
type Location struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Euclidean returns the straight-line distance between two locations.
func (l Location) Euclidean(o Location) float64 {
	return math.Hypot(l.X-o.X, l.Y-o.Y)
}

// Manhattan returns the grid distance between two locations.
func (l Location) Manhattan(o Location) float64 {
	return math.Abs(l.X-o.X) + math.Abs(l.Y-o.Y)
}

// Lerp returns the point at fraction f of the segment from l to o. The result
// keeps the id of o once f reaches 1 and is anonymous otherwise.
func (l Location) Lerp(o Location, f float64) Location {
	if f <= 0 {
		return l
	}
	if f >= 1 {
		return o
	}
	return Location{X: l.X + (o.X-l.X)*f, Y: l.Y + (o.Y-l.Y)*f}
}

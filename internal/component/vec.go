package component

import "math"

// Vec2 is an integer grid coordinate or a unit step between tiles.
type Vec2 struct {
	X, Y int32
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

// Length returns the Euclidean length in tiles.
func (v Vec2) Length() float64 {
	return math.Hypot(float64(v.X), float64(v.Y))
}

// IsStep reports whether v is a single-tile step: each axis in {-1,0,1} and
// not both zero.
func (v Vec2) IsStep() bool {
	if v.X < -1 || v.X > 1 || v.Y < -1 || v.Y > 1 {
		return false
	}
	return v.X != 0 || v.Y != 0
}

package geometry

import "github.com/go-gl/mathgl/mgl64"

// Fit modes for FitFrame
const (
	FitContain = "contain"
	FitCover   = "cover"
)

// Point is a world-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ControlPoint is a coordinate normalized to the content frame, both axes in [0,1].
type ControlPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Frame is the world-space rectangle control points are mapped into.
type Frame struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Sample is the result of resolving a distance along a path.
type Sample struct {
	Position Point   `json:"position"`
	Tangent  Point   `json:"tangent"`
	Normal   Point   `json:"normal"`
	Segment  int     `json:"segment"`
	T        float64 `json:"t"`
}

// Vec converts p to a mathgl vector.
func (p Point) Vec() mgl64.Vec2 {
	return mgl64.Vec2{p.X, p.Y}
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return q.Vec().Sub(p.Vec()).Len()
}

func pointOf(v mgl64.Vec2) Point {
	return Point{X: v.X(), Y: v.Y()}
}

// Valid reports whether both coordinates are inside the unit square.
func (c ControlPoint) Valid() bool {
	return c.X >= 0 && c.X <= 1 && c.Y >= 0 && c.Y <= 1
}

// inner returns the drawable size of the frame after removing the margin on
// both sides. Each axis is at least 1 so the mapping stays invertible.
func (f Frame) inner(margin float64) (float64, float64) {
	return max(1, f.Width-margin*2), max(1, f.Height-margin*2)
}

// Package geometry turns authored control points into a drivable polyline.
//
// Control points are stored normalized to [0,1]x[0,1] relative to a content
// frame (usually the fitted background image). Build scales them into world
// coordinates and precomputes per-segment lengths plus a prefix-sum table,
// so that SampleAt can answer "where is the car after travelling D units"
// with a binary search instead of a linear walk.
//
// Nothing in this package returns an error. Paths with fewer than two points
// are empty, out-of-range distances are clamped, and zero-length segments
// sample with t = 0. Callers render every frame regardless of path validity.
//
// Usage:
//
//	frame := geometry.FitFrame(1280, 720, 1920, 1080, geometry.FitContain)
//	path := geometry.Build(points, frame, 0)
//	s := path.SampleAt(progress)
//	fmt.Println(s.Position, s.Tangent, s.Normal)
package geometry

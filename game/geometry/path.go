package geometry

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Default orientation reported when a path has no usable segment.
var (
	defaultTangent = Point{X: 0, Y: 1}
	defaultNormal  = Point{X: -1, Y: 0}
)

// Path is a polyline in world coordinates with cached arc lengths.
type Path struct {
	Points         []Point   `json:"points"`
	SegmentLengths []float64 `json:"segment_lengths"`
	TotalLength    float64   `json:"total_length"`

	// offsets[i] is the arc length at the start of segment i; the final
	// entry equals TotalLength.
	offsets []float64
}

// ToWorld maps a normalized control point into the frame.
func ToWorld(c ControlPoint, frame Frame, margin float64) Point {
	w, h := frame.inner(margin)
	return Point{
		X: frame.X + margin + c.X*w,
		Y: frame.Y + margin + c.Y*h,
	}
}

// Normalize is the inverse of ToWorld, clamped to the unit square.
func Normalize(p Point, frame Frame, margin float64) ControlPoint {
	w, h := frame.inner(margin)
	return ControlPoint{
		X: clamp01((p.X - frame.X - margin) / w),
		Y: clamp01((p.Y - frame.Y - margin) / h),
	}
}

// Build scales controls into frame and computes segment lengths. Fewer than
// two control points produce an empty path.
func Build(controls []ControlPoint, frame Frame, margin float64) *Path {
	points := make([]Point, len(controls))
	for i, c := range controls {
		points[i] = ToWorld(c, frame, margin)
	}
	return FromPoints(points)
}

// FromPoints builds a path directly from world coordinates. Fewer than two
// points produce an empty path.
func FromPoints(points []Point) *Path {
	p := &Path{
		Points:         []Point{},
		SegmentLengths: []float64{},
		offsets:        []float64{0},
	}
	if len(points) < 2 {
		return p
	}
	p.Points = append([]Point(nil), points...)
	p.computeLengths()
	return p
}

func (p *Path) computeLengths() {
	n := len(p.Points) - 1
	p.SegmentLengths = make([]float64, n)
	p.offsets = make([]float64, n+1)
	p.TotalLength = 0
	for i := 0; i < n; i++ {
		l := p.Points[i].Dist(p.Points[i+1])
		p.SegmentLengths[i] = l
		p.TotalLength += l
		p.offsets[i+1] = p.TotalLength
	}
}

// Empty reports whether the path has no drivable length.
func (p *Path) Empty() bool {
	return p == nil || p.TotalLength <= 0
}

// SampleAt resolves the position, tangent and left-hand normal at distance d.
// The distance is clamped to [0, TotalLength].
func (p *Path) SampleAt(d float64) Sample {
	if p == nil || len(p.Points) == 0 {
		return Sample{Tangent: defaultTangent, Normal: defaultNormal}
	}
	if p.TotalLength <= 0 || len(p.SegmentLengths) == 0 {
		return Sample{Position: p.Points[0], Tangent: defaultTangent, Normal: defaultNormal}
	}
	if len(p.offsets) != len(p.SegmentLengths)+1 {
		// Decoded from JSON without the cache.
		p.computeLengths()
	}

	d = max(0, min(d, p.TotalLength))

	// First segment whose end offset reaches d.
	i := sort.Search(len(p.SegmentLengths), func(i int) bool {
		return p.offsets[i+1] >= d
	})
	if i >= len(p.SegmentLengths) {
		last := len(p.Points) - 1
		tangent, normal := orient(p.Points[last-1].Vec(), p.Points[last].Vec())
		return Sample{Position: p.Points[last], Tangent: tangent, Normal: normal, Segment: last - 1, T: 1}
	}

	segLen := p.SegmentLengths[i]
	t := 0.0
	if segLen != 0 {
		t = (d - p.offsets[i]) / segLen
	}

	p0, p1 := p.Points[i].Vec(), p.Points[i+1].Vec()
	tangent, normal := orient(p0, p1)
	return Sample{
		Position: pointOf(p0.Add(p1.Sub(p0).Mul(t))),
		Tangent:  tangent,
		Normal:   normal,
		Segment:  i,
		T:        t,
	}
}

// orient returns the unit direction from a to b and its perpendicular (-ty, tx).
// A zero-length segment yields a zero tangent.
func orient(a, b mgl64.Vec2) (Point, Point) {
	dir := b.Sub(a)
	l := dir.Len()
	if l == 0 {
		l = 1
	}
	t := dir.Mul(1 / l)
	return pointOf(t), Point{X: -t.Y(), Y: t.X()}
}

// FitFrame places an image of size imgW x imgH inside a viewport, centered.
// FitCover fills the viewport (cropping), anything else letterboxes. A
// missing image size falls back to the viewport size.
func FitFrame(viewW, viewH, imgW, imgH float64, fit string) Frame {
	if imgW <= 0 {
		imgW = viewW
	}
	if imgH <= 0 {
		imgH = viewH
	}
	if imgW <= 0 || imgH <= 0 {
		return Frame{Width: max(0, viewW), Height: max(0, viewH)}
	}

	sx, sy := viewW/imgW, viewH/imgH
	scale := min(sx, sy)
	if fit == FitCover {
		scale = max(sx, sy)
	}

	w, h := imgW*scale, imgH*scale
	return Frame{
		X:      (viewW - w) / 2,
		Y:      (viewH - h) / 2,
		Width:  w,
		Height: h,
	}
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

package blockstage

import "math"

// Vec2 is a 2D vector used for sprite positions and motion offsets. Stage
// coordinates are centered on the origin with Y growing toward the bottom of
// the preview.
type Vec2 struct {
	X, Y float64
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v scaled by k.
func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X, Y, Width, Height float64
}

// BoxAround returns the size x size box centered on c.
func BoxAround(c Vec2, size float64) Rect {
	h := size / 2
	return Rect{X: c.X - h, Y: c.Y - h, Width: size, Height: size}
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap. Rectangles that only share
// an edge do not intersect.
func (r Rect) Intersects(other Rect) bool {
	return r.X < other.X+other.Width &&
		r.X+r.Width > other.X &&
		r.Y < other.Y+other.Height &&
		r.Y+r.Height > other.Y
}

// NormalizeAngle maps any finite angle in degrees into [0, 360).
func NormalizeAngle(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 || a == 0 {
		return 0
	}
	return a
}

// Rotation is the start and end angle of an animated turn. Start is
// normalized; End may fall outside [0, 360) so that interpolating from Start
// to End never covers more than 180 degrees.
type Rotation struct {
	Start, End float64
}

// ShortestRotation returns the rotation from start toward end taking the
// shorter way around the circle.
func ShortestRotation(start, end float64) Rotation {
	s := NormalizeAngle(start)
	e := NormalizeAngle(end)
	diff := e - s
	if math.Abs(diff) > 180 {
		if diff > 0 {
			diff -= 360
		} else {
			diff += 360
		}
	}
	return Rotation{Start: s, End: s + diff}
}

// DirectionVector returns the unit vector a sprite facing dir travels along.
// Direction 0 points up the screen and 90 points right.
func DirectionVector(dir float64) Vec2 {
	rad := (dir - 90) * math.Pi / 180
	return Vec2{math.Cos(rad), math.Sin(rad)}
}

// DirectionOf is the inverse of DirectionVector. The zero vector maps to 90.
func DirectionOf(v Vec2) float64 {
	if v.X == 0 && v.Y == 0 {
		return 90
	}
	return NormalizeAngle(math.Atan2(v.Y, v.X)*180/math.Pi + 90)
}

// BounceDirection is the direction pointing from other toward from, i.e. the
// way a sprite at from rebounds after hitting a sprite at other.
func BounceDirection(from, other Vec2) float64 {
	return DirectionOf(from.Sub(other))
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vec2) float64 {
	return a.Sub(b).Len()
}

// CirclesTouch reports whether two round sprites of the given diameters
// overlap.
func CirclesTouch(a, b Vec2, sizeA, sizeB float64) bool {
	return Distance(a, b) < (sizeA+sizeB)/2
}

// MoveDuration returns how long a goToXY glide of the given distance lasts:
// base + distance*pixelsPerStep*2 milliseconds, clamped to [base, max].
func MoveDuration(distance float64, a AnimationTuning) float64 {
	d := a.BaseDurationMs + distance*a.PixelsPerStep*2
	if d < a.BaseDurationMs {
		return a.BaseDurationMs
	}
	if d > a.MaxDurationMs {
		return a.MaxDurationMs
	}
	return d
}

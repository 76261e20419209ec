package blockstage

import (
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenGroup animates up to two float64 values simultaneously. Create one via
// TweenAngle or TweenPoint and call Update(dt) once per frame; the current
// values are available through Value and Point. The group never writes to a
// sprite itself; the caller commits values through the store.
type TweenGroup struct {
	tweens [2]*gween.Tween
	count  int
	values [2]float64
	Done   bool
}

// Update advances all tweens by dt and records their current values. Once
// every tween has finished Done is set and further calls are no-ops.
func (g *TweenGroup) Update(dt time.Duration) {
	if g.Done {
		return
	}
	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(float32(dt.Seconds()))
		g.values[i] = float64(val)
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone
}

// Value returns the first animated value.
func (g *TweenGroup) Value() float64 { return g.values[0] }

// Point returns the first two animated values as a vector.
func (g *TweenGroup) Point() Vec2 { return Vec2{g.values[0], g.values[1]} }

// TweenAngle creates a TweenGroup that animates a single angle between the
// endpoints of r over the given duration.
func TweenAngle(r Rotation, duration time.Duration, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 1}
	g.tweens[0] = gween.New(float32(r.Start), float32(r.End), float32(duration.Seconds()), fn)
	g.values[0] = r.Start
	return g
}

// TweenPoint creates a TweenGroup that animates from toward to over the given
// duration using the easing function on both axes.
func TweenPoint(from, to Vec2, duration time.Duration, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 2}
	g.tweens[0] = gween.New(float32(from.X), float32(to.X), float32(duration.Seconds()), fn)
	g.tweens[1] = gween.New(float32(from.Y), float32(to.Y), float32(duration.Seconds()), fn)
	g.values[0], g.values[1] = from.X, from.Y
	return g
}

package blockstage

import "github.com/tanema/gween/ease"

// Easing maps normalized progress t in [0, 1] to eased progress. Curves may
// overshoot between the endpoints but always return exactly 0 at t <= 0 and
// 1 at t >= 1.
type Easing func(t float64) float64

func fromTween(fn ease.TweenFunc) Easing {
	return func(t float64) float64 {
		if t <= 0 {
			return 0
		}
		if t >= 1 {
			return 1
		}
		return float64(fn(float32(t), 0, 1, 1))
	}
}

// Easing curves used by the interpreter and front ends.
var (
	EaseLinear     = fromTween(ease.Linear)
	EaseOutQuad    = fromTween(ease.OutQuad)
	EaseInOutQuad  = fromTween(ease.InOutQuad)
	EaseInOutCubic = fromTween(ease.InOutCubic)
	EaseOutCirc    = fromTween(ease.OutCirc)
	EaseOutBack    = fromTween(ease.OutBack)
)

// Lerp interpolates between from and to by the eased progress of t.
func Lerp(from, to, t float64, fn Easing) float64 {
	return from + (to-from)*fn(t)
}

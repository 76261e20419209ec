package preview

import "github.com/phanxgames/blockstage"

// Viewport maps stage coordinates (origin at the center, extents from
// StageTuning) onto a window of Width x Height pixels with the origin at the
// top-left.
type Viewport struct {
	Width, Height float64
	Stage         blockstage.StageTuning
}

func (v Viewport) scale() (sx, sy float64) {
	return v.Width / (2 * v.Stage.HalfWidth), v.Height / (2 * v.Stage.HalfHeight)
}

// ToScreen converts a stage position to window pixels.
func (v Viewport) ToScreen(p blockstage.Vec2) (x, y float64) {
	sx, sy := v.scale()
	return (p.X + v.Stage.HalfWidth) * sx, (p.Y + v.Stage.HalfHeight) * sy
}

// ToStage converts window pixels to a stage position.
func (v Viewport) ToStage(x, y float64) blockstage.Vec2 {
	sx, sy := v.scale()
	return blockstage.Vec2{X: x/sx - v.Stage.HalfWidth, Y: y/sy - v.Stage.HalfHeight}
}

// SpriteBounds returns the on-screen box of a sprite. Sprites are drawn Size
// pixels wide regardless of the window size.
func (v Viewport) SpriteBounds(sp blockstage.Sprite) blockstage.Rect {
	x, y := v.ToScreen(sp.Position)
	return blockstage.BoxAround(blockstage.Vec2{X: x, Y: y}, sp.Size)
}

// HitSprite returns the topmost visible sprite under the window point
// (x, y). Later sprites are drawn on top of earlier ones.
func (v Viewport) HitSprite(sprites []blockstage.Sprite, x, y float64) (string, bool) {
	for i := len(sprites) - 1; i >= 0; i-- {
		sp := sprites[i]
		if !sp.IsVisible {
			continue
		}
		if v.SpriteBounds(sp).Contains(x, y) {
			return sp.ID, true
		}
	}
	return "", false
}

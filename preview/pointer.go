package preview

import (
	"math"

	"github.com/phanxgames/blockstage"
)

const defaultDragDeadZone = 4.0 // pixels

// pointer tracks the primary mouse button between frames and turns it into
// mouse-down state, sprite selection and drags on the stage.
type pointer struct {
	down     bool
	startX   float64
	startY   float64
	lastX    float64
	lastY    float64
	hit      string // sprite under the press, if any
	dragging bool
	deadZone float64
}

// update feeds one frame of pointer state. fling is the distance handed to
// the physics loop when a drag ends.
func (p *pointer) update(st *blockstage.Stage, vp Viewport, x, y float64, pressed bool, fling float64) error {
	switch {
	case pressed && !p.down:
		p.down = true
		p.startX, p.startY = x, y
		p.lastX, p.lastY = x, y
		p.dragging = false
		p.hit, _ = vp.HitSprite(st.Store.Sprites(), x, y)
		st.InjectMouse(true)
		if p.hit != "" {
			return st.Store.SetActiveSprite(p.hit)
		}

	case pressed && p.down:
		defer func() { p.lastX, p.lastY = x, y }()
		if p.hit == "" {
			return nil
		}
		if !p.dragging {
			if math.Hypot(x-p.startX, y-p.startY) <= p.deadZone {
				return nil
			}
			p.dragging = true
			if err := st.StartDrag(p.hit); err != nil {
				p.dragging = false
				return err
			}
		}
		if x != p.lastX || y != p.lastY {
			return st.DragTo(p.hit, vp.ToStage(x, y))
		}

	case !pressed && p.down:
		p.down = false
		st.InjectMouse(false)
		if p.dragging {
			p.dragging = false
			return st.EndDrag(p.hit, fling)
		}
	}
	return nil
}

package preview

import (
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// fpsWidget shows the current FPS/TPS and scheduler load. The text is
// refreshed every ~0.5 seconds.
type fpsWidget struct {
	img     *ebiten.Image
	elapsed time.Duration
}

func newFPSWidget() *fpsWidget {
	// 140x48 is enough for three short lines.
	return &fpsWidget{img: ebiten.NewImage(140, 48)}
}

func (w *fpsWidget) update(dt time.Duration, pending int) {
	w.elapsed += dt
	if w.elapsed < 500*time.Millisecond {
		return
	}
	w.elapsed = 0
	w.img.Clear()
	w.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(w.img, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nScheduled: %d",
		ebiten.ActualFPS(), ebiten.ActualTPS(), pending))
}

func (w *fpsWidget) draw(screen *ebiten.Image) {
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(4, 4)
	screen.DrawImage(w.img, op)
}

// Package preview renders a blockstage Stage in an Ebitengine window and
// feeds keyboard and mouse input back into it.
//
// Game implements [ebiten.Game]. Run opens a window for the common case; for
// full control embed a Game in your own ebiten.Game and forward Update, Draw
// and Layout.
package preview

import (
	"image/color"
	"log"
	"math"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/phanxgames/blockstage"
)

// Config controls the preview window.
type Config struct {
	Title         string
	Width         int
	Height        int
	ShowFPS       bool
	ScreenshotDir string
	// FlingSteps is the free-motion distance a sprite gets when a drag ends.
	FlingSteps float64
}

// DefaultConfig returns a 480x360 window.
func DefaultConfig() Config {
	return Config{
		Title:         "blockstage",
		Width:         480,
		Height:        360,
		ScreenshotDir: "screenshots",
		FlingSteps:    20,
	}
}

var (
	clearColor  = color.RGBA{30, 30, 40, 255}
	borderColor = color.RGBA{90, 90, 110, 255}
	ringColor   = color.RGBA{255, 80, 80, 255}
	labelColor  = color.RGBA{220, 220, 230, 255}
	bubbleColor = color.RGBA{255, 255, 255, 255}
	thinkColor  = color.RGBA{225, 225, 235, 255}
	inkColor    = color.RGBA{0, 0, 0, 255}

	spriteColors = []color.RGBA{
		{80, 180, 255, 255},
		{255, 170, 60, 255},
		{120, 220, 120, 255},
		{220, 120, 220, 255},
	}
)

var whitePixel = func() *ebiten.Image {
	img := ebiten.NewImage(1, 1)
	img.Fill(color.White)
	return img
}()

// Game draws a stage and routes input into it.
type Game struct {
	stage *blockstage.Stage
	cfg   Config
	vp    Viewport
	font  *Font
	log   *log.Logger

	ptr     pointer
	keyBuf  []ebiten.Key
	fps     *fpsWidget
	colors  map[string]color.RGBA
	nextClr int

	screenshotQueue []string
}

// NewGame creates a Game for stage. A nil logger logs to stderr.
func NewGame(stage *blockstage.Stage, cfg Config, logger *log.Logger) (*Game, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[preview] ", log.LstdFlags)
	}
	font, err := DefaultFont(12)
	if err != nil {
		return nil, err
	}
	g := &Game{
		stage:  stage,
		cfg:    cfg,
		vp:     Viewport{Width: float64(cfg.Width), Height: float64(cfg.Height), Stage: stage.Tuning().Stage},
		font:   font,
		log:    logger,
		ptr:    pointer{deadZone: defaultDragDeadZone},
		colors: make(map[string]color.RGBA),
	}
	if cfg.ShowFPS {
		g.fps = newFPSWidget()
	}
	return g, nil
}

// Run opens a window and runs the preview until it is closed.
func Run(stage *blockstage.Stage, cfg Config) error {
	g, err := NewGame(stage, cfg, nil)
	if err != nil {
		return err
	}
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetTPS(stage.Tuning().FrameRate)
	return ebiten.RunGame(g)
}

// Update processes input and advances the stage by one tick.
func (g *Game) Update() error {
	dt := time.Second / time.Duration(ebiten.TPS())

	g.keyBuf = inpututil.AppendJustPressedKeys(g.keyBuf[:0])
	for _, k := range g.keyBuf {
		switch k {
		case ebiten.KeyR:
			g.stage.RunAll()
		case ebiten.KeyS:
			g.stage.StopAll()
		case ebiten.KeyF12:
			g.Screenshot("stage")
		}
		if name, ok := KeyName(k); ok {
			g.stage.InjectKeyDown(name)
		}
	}
	g.keyBuf = inpututil.AppendJustReleasedKeys(g.keyBuf[:0])
	for _, k := range g.keyBuf {
		if name, ok := KeyName(k); ok {
			g.stage.InjectKeyUp(name)
		}
	}

	mx, my := ebiten.CursorPosition()
	pressed := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	if err := g.ptr.update(g.stage, g.vp, float64(mx), float64(my), pressed, g.cfg.FlingSteps); err != nil {
		g.log.Printf("pointer: %v", err)
	}

	g.stage.Update(dt)
	if g.fps != nil {
		g.fps.update(dt, g.stage.Scheduler.Pending())
	}
	return nil
}

// Draw renders the stage.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(clearColor)
	vector.StrokeRect(screen, 0.5, 0.5, float32(g.cfg.Width)-1, float32(g.cfg.Height)-1, 1, borderColor, false)

	sprites := g.stage.Store.Sprites()
	for _, sp := range sprites {
		if sp.IsVisible {
			g.drawSprite(screen, sp)
		}
	}
	for _, sp := range sprites {
		if sp.IsVisible && sp.Speech != nil {
			g.drawBubble(screen, sp)
		}
	}
	if g.fps != nil {
		g.fps.draw(screen)
	}
	g.flushScreenshots(screen)
}

// Layout reports the configured window size.
func (g *Game) Layout(_, _ int) (int, int) {
	return g.cfg.Width, g.cfg.Height
}

func (g *Game) spriteColor(id string) color.RGBA {
	c, ok := g.colors[id]
	if !ok {
		c = spriteColors[g.nextClr%len(spriteColors)]
		g.nextClr++
		g.colors[id] = c
	}
	return c
}

// drawSprite draws a sprite as a quad rotated to its direction, with a
// heading line, a ring while colliding and its name underneath.
func (g *Game) drawSprite(screen *ebiten.Image, sp blockstage.Sprite) {
	cx, cy := g.vp.ToScreen(sp.Position)
	size := sp.Size

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(size, size)
	op.GeoM.Translate(-size/2, -size/2)
	op.GeoM.Rotate((sp.Direction - 90) * math.Pi / 180)
	op.GeoM.Translate(cx, cy)
	op.ColorScale.ScaleWithColor(g.spriteColor(sp.ID))
	if sp.IsDragging {
		op.ColorScale.ScaleAlpha(0.7)
	}
	screen.DrawImage(whitePixel, op)

	head := blockstage.DirectionVector(sp.Direction).Scale(size * 0.75)
	vector.StrokeLine(screen, float32(cx), float32(cy), float32(cx+head.X), float32(cy+head.Y), 2, inkColor, true)

	if sp.IsColliding {
		vector.StrokeCircle(screen, float32(cx), float32(cy), float32(size*0.75), 2, ringColor, true)
	}

	w, _ := g.font.MeasureString(sp.Name)
	g.font.Draw(screen, sp.Name, cx-w/2, cy+size/2+2, labelColor)
}

// drawBubble draws the speech or thought bubble above a sprite.
func (g *Game) drawBubble(screen *ebiten.Image, sp blockstage.Sprite) {
	const pad, maxW = 4.0, 120.0
	lines := wrapWords(sp.Speech.Message, maxW, func(s string) float64 {
		w, _ := g.font.MeasureString(s)
		return w
	})
	if len(lines) == 0 {
		return
	}
	var w float64
	for _, l := range lines {
		lw, _ := g.font.MeasureString(l)
		w = math.Max(w, lw)
	}
	h := float64(len(lines)) * g.font.LineHeight()

	cx, cy := g.vp.ToScreen(sp.Position)
	x := cx - w/2 - pad
	y := cy - sp.Size/2 - h - 2*pad - 8

	fill := bubbleColor
	if sp.Speech.Kind == blockstage.SpeechThink {
		fill = thinkColor
		vector.DrawFilledCircle(screen, float32(cx), float32(cy-sp.Size/2-3), 2, fill, true)
		vector.DrawFilledCircle(screen, float32(cx+3), float32(cy-sp.Size/2-7), 3, fill, true)
	} else {
		vector.StrokeLine(screen, float32(cx), float32(cy-sp.Size/2), float32(cx), float32(y+h+2*pad), 2, fill, true)
	}
	vector.DrawFilledRect(screen, float32(x), float32(y), float32(w+2*pad), float32(h+2*pad), fill, true)
	for i, l := range lines {
		g.font.Draw(screen, l, x+pad, y+pad+float64(i)*g.font.LineHeight(), inkColor)
	}
}

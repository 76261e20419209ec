package blockstage

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tanema/gween/ease"
)

// task is the suspended state of one block. step is called once per frame
// with the frame's duration and reports whether the block has finished.
// A task that starts in the middle of a frame (because its predecessor just
// finished) receives dt == 0 on its first call.
type task interface {
	step(rc *runContext, dt time.Duration) (bool, error)
}

type runContext struct {
	e        *Engine
	spriteID string
}

func (rc *runContext) warnf(format string, args ...any) {
	rc.e.log.Printf("%s: "+format, append([]any{rc.spriteID}, args...)...)
}

// runBlock advances t by one frame inside the per-block error boundary. A
// block that returns an error or panics is logged and counts as finished.
func (rc *runContext) runBlock(b Block, t task, dt time.Duration) (done bool) {
	defer func() {
		if p := recover(); p != nil {
			rc.warnf("block %s (%s) failed: %v", b.ID, b.Type, p)
			done = true
		}
	}()
	done, err := t.step(rc, dt)
	if err != nil {
		rc.warnf("block %s (%s) failed: %v", b.ID, b.Type, err)
		return true
	}
	return done
}

// sequence runs blocks one after another, waiting gap between siblings. stop
// is polled before each block starts.
type sequence struct {
	blocks  []Block
	gap     time.Duration
	stop    func() bool
	idx     int
	cur     task
	gapLeft time.Duration
}

func (s *sequence) step(rc *runContext, dt time.Duration) bool {
	for {
		if s.gapLeft > 0 {
			s.gapLeft -= dt
			if s.gapLeft > 0 {
				return false
			}
			dt = 0
		}
		if s.cur == nil {
			if s.idx >= len(s.blocks) {
				return true
			}
			if s.stop != nil && s.stop() {
				return true
			}
			s.cur = rc.compile(s.blocks[s.idx])
			if s.cur == nil {
				s.advance()
				continue
			}
		}
		if !rc.runBlock(s.blocks[s.idx], s.cur, dt) {
			return false
		}
		dt = 0
		s.advance()
	}
}

func (s *sequence) advance() {
	s.cur = nil
	s.idx++
	if s.gap > 0 && s.idx < len(s.blocks) {
		s.gapLeft = s.gap
	}
}

// compile validates a block's parameters and returns its task, or nil when
// the block is a no-op (malformed parameters, blank speech, unknown type).
func (rc *runContext) compile(b Block) task {
	a := rc.e.tuning.Animation
	switch b.Type {
	case BlockMove:
		steps, ok := numberParam(b, 0)
		if !ok {
			rc.warnf("move: invalid steps %s", paramText(b, 0))
			return nil
		}
		return &moveTask{remaining: math.Abs(steps) * a.StepDistance, sign: sign(steps)}
	case BlockTurnRight, BlockTurnLeft:
		deg, ok := numberParam(b, 0)
		if !ok {
			rc.warnf("%s: invalid degrees %s", b.Type, paramText(b, 0))
			return nil
		}
		if b.Type == BlockTurnLeft {
			deg = -deg
		}
		return &turnTask{delta: deg, duration: ms(a.TurnDurationMs)}
	case BlockGoToXY:
		x, okX := numberParam(b, 0)
		y, okY := numberParam(b, 1)
		if !okX || !okY {
			rc.warnf("goToXY: invalid target (%s, %s)", paramText(b, 0), paramText(b, 1))
			return nil
		}
		return &goToTask{target: Vec2{x, y}}
	case BlockSay, BlockThink:
		p, ok := b.Param(0)
		msg := strings.TrimSpace(p.String())
		if !ok || msg == "" {
			return nil
		}
		hold := ms(a.LooksDurationMs)
		if p, ok := b.Param(1); ok && strings.TrimSpace(p.String()) != "" {
			secs, ok := p.Number()
			if ok && secs >= 0 {
				hold = time.Duration(secs * float64(time.Second))
			} else {
				rc.warnf("%s: invalid duration %q, using default", b.Type, p.String())
			}
		}
		return &speechTask{speech: Speech{Kind: SpeechKind(b.Type), Message: msg}, hold: hold}
	case BlockRepeat:
		times, ok := numberParam(b, 0)
		if !ok || times < 1 || times != math.Trunc(times) {
			rc.warnf("repeat: invalid count %s", paramText(b, 0))
			return nil
		}
		return &repeatTask{
			times:    int(times),
			children: b.Children,
			gap:      ms(a.RepeatDelayMs),
			childGap: ms(a.BlockDelayMs),
		}
	case BlockIf, BlockIfElse:
		return &branchTask{block: b, childGap: ms(a.BlockDelayMs)}
	}
	rc.warnf("unknown block type %q", b.Type)
	return nil
}

func numberParam(b Block, i int) (float64, bool) {
	p, ok := b.Param(i)
	if !ok {
		return math.NaN(), false
	}
	return p.Number()
}

func paramText(b Block, i int) string {
	p, ok := b.Param(i)
	if !ok {
		return "<missing>"
	}
	return fmt.Sprintf("%q", p.String())
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// moveTask advances the sprite by a fixed increment per frame. The
// direction is read once; the position is re-read every frame so that a
// collision revert from the physics loop is respected.
type moveTask struct {
	remaining float64
	sign      float64
	dir       Vec2
	started   bool
}

func (t *moveTask) step(rc *runContext, _ time.Duration) (bool, error) {
	if t.remaining <= 0 {
		return true, nil
	}
	if !t.started {
		d, err := SpriteProperty[float64](rc.e.store, rc.spriteID, PropDirection)
		if err != nil {
			return true, err
		}
		t.dir = DirectionVector(d).Scale(t.sign)
		t.started = true
	}
	pos, err := SpriteProperty[Vec2](rc.e.store, rc.spriteID, PropPosition)
	if err != nil {
		return true, err
	}
	inc := math.Min(rc.e.tuning.Animation.MoveIncrement, t.remaining)
	next := pos.Add(t.dir.Scale(inc))
	if err := rc.e.store.SetSpritePosition(rc.spriteID, PositionUpdate{Position: &next}); err != nil {
		return true, err
	}
	t.remaining -= inc
	return t.remaining <= 0, nil
}

// turnTask eases the direction along the shortest path and commits the
// exact normalized target when done.
type turnTask struct {
	delta    float64
	duration time.Duration
	rot      Rotation
	tween    *TweenGroup
}

func (t *turnTask) step(rc *runContext, dt time.Duration) (bool, error) {
	if t.tween == nil {
		d, err := SpriteProperty[float64](rc.e.store, rc.spriteID, PropDirection)
		if err != nil {
			return true, err
		}
		t.rot = ShortestRotation(d, d+t.delta)
		t.tween = TweenAngle(t.rot, t.duration, ease.OutCirc)
	}
	t.tween.Update(dt)
	dir := t.tween.Value()
	if t.tween.Done {
		dir = t.rot.End
	}
	if err := rc.e.store.SetSpritePosition(rc.spriteID, PositionUpdate{Direction: &dir}); err != nil {
		return true, err
	}
	return t.tween.Done, nil
}

// goToTask glides to the target and commits it exactly when done.
type goToTask struct {
	target Vec2
	tween  *TweenGroup
}

func (t *goToTask) step(rc *runContext, dt time.Duration) (bool, error) {
	if t.tween == nil {
		pos, err := SpriteProperty[Vec2](rc.e.store, rc.spriteID, PropPosition)
		if err != nil {
			return true, err
		}
		d := ms(MoveDuration(Distance(pos, t.target), rc.e.tuning.Animation))
		t.tween = TweenPoint(pos, t.target, d, ease.InOutCubic)
	}
	t.tween.Update(dt)
	p := t.tween.Point()
	if t.tween.Done {
		p = t.target
	}
	if err := rc.e.store.SetSpritePosition(rc.spriteID, PositionUpdate{Position: &p}); err != nil {
		return true, err
	}
	return t.tween.Done, nil
}

// speechTask shows a bubble, holds it, then clears it.
type speechTask struct {
	speech  Speech
	hold    time.Duration
	elapsed time.Duration
	shown   bool
}

func (t *speechTask) step(rc *runContext, dt time.Duration) (bool, error) {
	if !t.shown {
		if err := rc.e.store.SetSpriteSpeech(rc.spriteID, &t.speech); err != nil {
			return true, err
		}
		t.shown = true
	} else {
		t.elapsed += dt
	}
	if t.elapsed < t.hold {
		return false, nil
	}
	return true, rc.e.store.SetSpriteSpeech(rc.spriteID, nil)
}

// repeatTask runs its children times times, pausing gap between iterations.
type repeatTask struct {
	times    int
	children []Block
	gap      time.Duration
	childGap time.Duration
	iter     int
	body     *sequence
	gapLeft  time.Duration
}

func (t *repeatTask) step(rc *runContext, dt time.Duration) (bool, error) {
	for {
		if t.gapLeft > 0 {
			t.gapLeft -= dt
			if t.gapLeft > 0 {
				return false, nil
			}
			dt = 0
		}
		if t.body == nil {
			if t.iter >= t.times {
				return true, nil
			}
			if rc.e.debugEnabled() {
				rc.e.log.Printf("%s: repeat iteration %d/%d", rc.spriteID, t.iter+1, t.times)
			}
			t.body = &sequence{blocks: t.children, gap: t.childGap}
		}
		if !t.body.step(rc, dt) {
			return false, nil
		}
		dt = 0
		t.body = nil
		t.iter++
		if t.iter < t.times {
			t.gapLeft = t.gap
		}
	}
}

// branchTask evaluates an if / ifElse condition once and runs the chosen
// children.
type branchTask struct {
	block    Block
	childGap time.Duration
	body     *sequence
}

func (t *branchTask) step(rc *runContext, dt time.Duration) (bool, error) {
	if t.body == nil {
		cond, _ := t.block.Param(0)
		ok := rc.e.evaluateCondition(rc.spriteID, ConditionType(cond.String()), t.block.Params)
		var chosen []Block
		for _, c := range t.block.Children {
			isElse := t.block.Type == BlockIfElse && c.IsElse
			if isElse != ok {
				chosen = append(chosen, c)
			}
		}
		t.body = &sequence{blocks: chosen, gap: t.childGap}
	}
	return t.body.step(rc, dt), nil
}

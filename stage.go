package blockstage

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// FrameRecorder receives a snapshot after every frame. trace.Writer
// implements it.
type FrameRecorder interface {
	RecordFrame(StageSnapshot) error
}

// StageSnapshot is the observable state of a stage after a frame.
type StageSnapshot struct {
	Frame        uint64         `json:"frame"`
	Time         time.Duration  `json:"time"`
	ActiveSprite string         `json:"activeSprite"`
	Sprites      []Sprite       `json:"sprites"`
	Execution    ExecutionState `json:"execution"`
}

// Stage is the top-level object that owns the sprite store, input state,
// scheduler, interpreter and physics loop. Front ends call Update once per
// frame and route user actions through its methods.
type Stage struct {
	Store     *Store
	Input     *InputState
	Scheduler *Scheduler
	Engine    *Engine
	Physics   *Physics

	tuning Tuning
	log    *log.Logger
	debug  atomic.Bool

	mu       sync.Mutex
	recorder FrameRecorder
	script   *ScriptRunner
	drags    map[string]Vec2 // sprite id -> last drag delta
	taps     map[string]Handle
}

// NewStage creates a stage holding the default sprite. A nil logger logs to
// stderr.
func NewStage(tuning Tuning, logger *log.Logger) *Stage {
	if logger == nil {
		logger = log.New(os.Stderr, "[blockstage] ", log.LstdFlags)
	}
	sched := NewScheduler()
	store := NewStore()
	store.SetClock(sched.Now)
	input := NewInputState()
	engine := NewEngine(store, sched, input, tuning, logger)
	physics := NewPhysics(store, sched, tuning.Physics, logger)
	engine.AttachPhysics(physics)
	return &Stage{
		Store:     store,
		Input:     input,
		Scheduler: sched,
		Engine:    engine,
		Physics:   physics,
		tuning:    tuning,
		log:       logger,
		drags:     make(map[string]Vec2),
	}
}

// Tuning returns the stage's constants.
func (s *Stage) Tuning() Tuning { return s.tuning }

// SetDebugMode enables per-frame stats on stderr and per-iteration
// interpreter logging.
func (s *Stage) SetDebugMode(on bool) {
	s.debug.Store(on)
	s.Engine.SetDebug(on)
}

// SetRecorder attaches a recorder that receives a snapshot after each frame.
// Pass nil to detach.
func (s *Stage) SetRecorder(r FrameRecorder) {
	s.mu.Lock()
	s.recorder = r
	s.mu.Unlock()
}

// SetScript attaches a script runner that advances one step before each
// frame.
func (s *Stage) SetScript(r *ScriptRunner) {
	s.mu.Lock()
	s.script = r
	s.mu.Unlock()
}

// Update advances the stage by one frame of length dt.
func (s *Stage) Update(dt time.Duration) {
	s.mu.Lock()
	script, rec := s.script, s.recorder
	s.mu.Unlock()

	if script != nil {
		script.step(s)
	}
	debug := s.debug.Load()
	var start time.Time
	if debug {
		start = time.Now()
	}
	s.Scheduler.Step(dt)
	if debug {
		s.debugLog(debugStats{
			stepTime: time.Since(start),
			frame:    s.Scheduler.Frame(),
			runs:     len(s.Engine.State().ExecutingSprites),
			motions:  s.Physics.Moving(),
			pending:  s.Scheduler.Pending(),
		})
	}
	if rec != nil {
		if err := rec.RecordFrame(s.Snapshot()); err != nil {
			s.log.Printf("record frame: %v", err)
			s.SetRecorder(nil)
		}
	}
}

// Run calls Update on a real-time ticker at the tuning's frame rate until
// ctx is done. Headless front ends use it in place of a render loop.
func (s *Stage) Run(ctx context.Context) error {
	frame := s.tuning.FrameDuration()
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Update(frame)
		}
	}
}

// Snapshot returns the current observable state.
func (s *Stage) Snapshot() StageSnapshot {
	return StageSnapshot{
		Frame:        s.Scheduler.Frame(),
		Time:         s.Scheduler.Now(),
		ActiveSprite: s.Store.ActiveSprite(),
		Sprites:      s.Store.Sprites(),
		Execution:    s.Engine.State(),
	}
}

// RunAll starts every sprite's program. Each sprite's current position is
// stored first as the position StopAll returns it to. Nothing happens while
// a run is already in progress.
func (s *Stage) RunAll() []*Run {
	if s.Engine.State().IsPlaying {
		return nil
	}
	sprites := s.Store.Sprites()
	for i, sp := range sprites {
		_ = s.Store.StoreInitialPosition(sp.ID, sp.Position)
		sprites[i].InitialPosition = sp.Position
	}
	return s.Engine.RunAllPrograms(sprites)
}

// RunSprite starts one sprite's program, cancelling any free motion it has.
func (s *Stage) RunSprite(id string) (*Run, error) {
	sp, ok := s.Store.Sprite(id)
	if !ok {
		return nil, fmt.Errorf("run sprite %q: %w", id, ErrSpriteNotFound)
	}
	if s.Engine.IsExecuting(id) {
		return nil, fmt.Errorf("run sprite %q: %w", id, ErrAlreadyExecuting)
	}
	if _, moving := s.Physics.Remaining(id); moving {
		s.Physics.StartMotion(id, 0)
	}
	return s.Engine.RunProgram(sp.Blocks, id)
}

// DeleteSprite removes a sprite that is not running a program. The check and
// the removal happen under one lock, so a concurrent RunSprite cannot slip in
// between them.
func (s *Stage) DeleteSprite(id string) error {
	return s.Engine.whileIdle(id, func() error {
		return s.Store.DeleteSprite(id)
	})
}

// StopAll halts every run and all free motion and resets sprites to their
// initial positions.
func (s *Stage) StopAll() {
	s.Engine.StopAll(s.Store.Sprites())
}

// StartMotion hands spriteID steps of free travel to the physics loop.
func (s *Stage) StartMotion(id string, steps float64) error {
	if _, ok := s.Store.Sprite(id); !ok {
		return fmt.Errorf("motion %q: %w", id, ErrSpriteNotFound)
	}
	s.Physics.StartMotion(id, steps)
	return nil
}

// StartDrag picks a sprite up with the pointer. Any free motion it had is
// dropped.
func (s *Stage) StartDrag(id string) error {
	if err := s.Store.StartSpriteDrag(id); err != nil {
		return err
	}
	s.Physics.StartMotion(id, 0)
	s.mu.Lock()
	s.drags[id] = Vec2{}
	s.mu.Unlock()
	return nil
}

// DragTo moves a dragged sprite to pos.
func (s *Stage) DragTo(id string, pos Vec2) error {
	sp, ok := s.Store.Sprite(id)
	if !ok {
		return fmt.Errorf("drag %q: %w", id, ErrSpriteNotFound)
	}
	if err := s.Store.SetSpritePosition(id, PositionUpdate{Position: &pos}); err != nil {
		return err
	}
	s.mu.Lock()
	if d := pos.Sub(sp.Position); d.Len() > 0 {
		s.drags[id] = d
	}
	s.mu.Unlock()
	return nil
}

// EndDrag drops a dragged sprite. A positive fling sends it travelling that
// many steps along the direction of the last drag movement.
func (s *Stage) EndDrag(id string, fling float64) error {
	if err := s.Store.EndSpriteDrag(id); err != nil {
		return err
	}
	s.mu.Lock()
	delta := s.drags[id]
	delete(s.drags, id)
	s.mu.Unlock()
	if fling <= 0 || delta.Len() == 0 {
		return nil
	}
	dir := DirectionOf(delta)
	if err := s.Store.SetSpritePosition(id, PositionUpdate{Direction: &dir}); err != nil {
		return err
	}
	s.Physics.StartMotion(id, fling)
	return nil
}

// Close stops everything and unmounts the input state.
func (s *Stage) Close() {
	s.StopAll()
	s.Input.Close()
}

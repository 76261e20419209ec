package blockstage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyExecuting is returned when a sprite's program is started while a
// previous run of it is still in progress.
var ErrAlreadyExecuting = errors.New("sprite is already executing")

// ExecutionState is a snapshot of the engine's bookkeeping.
type ExecutionState struct {
	IsPlaying        bool     `json:"isPlaying"`
	ExecutingSprites []string `json:"executingSprites"`
	ShouldStop       bool     `json:"shouldStop"`
	SelectedBlockID  string   `json:"selectedBlockId,omitempty"`
	ActiveAnimations int      `json:"activeAnimations"`
}

// Run is one interpretation of a sprite's program.
type Run struct {
	spriteID  string
	token     *Token
	root      *sequence
	done      chan struct{}
	once      sync.Once
	cancelled atomic.Bool
	stopping  atomic.Bool // RequestStop was called while the run was live
}

// SpriteID returns the sprite being interpreted.
func (r *Run) SpriteID() string { return r.spriteID }

// Done is closed once the run has finished or been cancelled.
func (r *Run) Done() <-chan struct{} { return r.done }

// Finished reports whether Done is closed.
func (r *Run) Finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Cancelled reports whether the run was ended by StopAll.
func (r *Run) Cancelled() bool { return r.cancelled.Load() }

// Wait blocks until the run finishes or ctx is done. Something else must
// keep stepping the scheduler meanwhile.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Run) close() {
	r.once.Do(func() { close(r.done) })
}

// Engine interprets sprite programs against a SpriteStore, one run per
// sprite, stepping them on a Scheduler.
type Engine struct {
	store   SpriteStore
	sched   *Scheduler
	input   *InputState
	tuning  Tuning
	log     *log.Logger
	physics *Physics

	mu       sync.Mutex
	runs     map[string]*Run
	selected string
	debug    bool
}

// NewEngine creates an engine. A nil logger logs to stderr.
func NewEngine(store SpriteStore, sched *Scheduler, input *InputState, tuning Tuning, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[blockstage] ", log.LstdFlags)
	}
	return &Engine{
		store:  store,
		sched:  sched,
		input:  input,
		tuning: tuning,
		log:    logger,
		runs:   make(map[string]*Run),
	}
}

// AttachPhysics makes StopAll halt p along with the interpreter.
func (e *Engine) AttachPhysics(p *Physics) { e.physics = p }

// SetDebug enables per-iteration logging.
func (e *Engine) SetDebug(on bool) {
	e.mu.Lock()
	e.debug = on
	e.mu.Unlock()
}

func (e *Engine) debugEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.debug
}

// SetSelectedBlock records the block focused in the editor.
func (e *Engine) SetSelectedBlock(id string) {
	e.mu.Lock()
	e.selected = id
	e.mu.Unlock()
}

// State returns a snapshot of the execution state.
func (e *Engine) State() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.runs))
	stopping := false
	for id, r := range e.runs {
		ids = append(ids, id)
		stopping = stopping || r.stopping.Load()
	}
	sort.Strings(ids)
	return ExecutionState{
		IsPlaying:        len(ids) > 0,
		ExecutingSprites: ids,
		ShouldStop:       stopping,
		SelectedBlockID:  e.selected,
		ActiveAnimations: e.sched.Pending(),
	}
}

// IsExecuting reports whether spriteID has a run in progress.
func (e *Engine) IsExecuting(spriteID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runs[spriteID]
	return ok
}

// RunProgram starts interpreting blocks for spriteID. The first block begins
// on the next frame. The returned run's Done channel closes when every block
// has finished or the run is stopped. An empty program yields a run that is
// already finished.
func (e *Engine) RunProgram(blocks []Block, spriteID string) (*Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.runs[spriteID]; busy {
		return nil, fmt.Errorf("run %q: %w", spriteID, ErrAlreadyExecuting)
	}
	r := &Run{spriteID: spriteID, done: make(chan struct{})}
	if len(blocks) == 0 {
		r.close()
		return r, nil
	}
	r.token = e.sched.NewToken()
	r.root = &sequence{
		blocks: cloneBlocks(blocks),
		stop: func() bool {
			return r.token.Cancelled() || r.stopping.Load()
		},
	}
	e.runs[spriteID] = r
	e.sched.RequestFrame(r.token, func(_, dt time.Duration) { e.stepRun(r, dt) })
	return r, nil
}

func (e *Engine) stepRun(r *Run, dt time.Duration) {
	done := true
	defer func() {
		if p := recover(); p != nil {
			e.log.Printf("run %s aborted: %v", r.spriteID, p)
			done = true
		}
		if done {
			e.finish(r)
		}
	}()
	rc := &runContext{e: e, spriteID: r.spriteID}
	done = r.root.step(rc, dt)
	if !done {
		e.sched.RequestFrame(r.token, func(_, dt time.Duration) { e.stepRun(r, dt) })
	}
}

func (e *Engine) finish(r *Run) {
	e.mu.Lock()
	if e.runs[r.spriteID] == r {
		delete(e.runs, r.spriteID)
	}
	e.mu.Unlock()
	r.close()
}

// whileIdle runs fn while holding the run registry, so no run of spriteID
// can start until fn returns. It fails if one is already in progress.
func (e *Engine) whileIdle(spriteID string, fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.runs[spriteID]; busy {
		return fmt.Errorf("sprite %q: %w", spriteID, ErrAlreadyExecuting)
	}
	return fn()
}

// RequestStop asks every run in progress to end before its next top-level
// block. Blocks already animating finish normally. Runs started afterwards
// are not affected, and ShouldStop reads false once the stopped runs are gone.
func (e *Engine) RequestStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.runs {
		r.stopping.Store(true)
	}
}

// RunAllPrograms ends any runs in progress, then starts one run per sprite
// using each sprite's own blocks. Free motion keeps going.
func (e *Engine) RunAllPrograms(sprites []Sprite) []*Run {
	e.sched.Sync(e.cancelRuns)
	runs := make([]*Run, 0, len(sprites))
	for _, sp := range sprites {
		r, err := e.RunProgram(sp.Blocks, sp.ID)
		if err != nil {
			e.log.Printf("run %s: %v", sp.ID, err)
			continue
		}
		runs = append(runs, r)
	}
	return runs
}

// halt cancels every run and the physics loop. The caller holds the
// scheduler's step lock.
func (e *Engine) halt() {
	e.cancelRuns()
	if e.physics != nil {
		e.physics.Stop()
	}
}

// cancelRuns cancels every run. The caller holds the scheduler's step lock.
func (e *Engine) cancelRuns() {
	e.mu.Lock()
	runs := e.runs
	e.runs = make(map[string]*Run)
	e.mu.Unlock()

	for _, r := range runs {
		r.cancelled.Store(true)
		r.token.Cancel()
		r.close()
	}
}

// StopAll cancels every run and the physics loop, then returns each sprite to
// its initial position with no motion, speech or collision flag. Nothing
// scheduled before the call mutates sprites after it returns. StopAll must
// not be called from inside a scheduled callback.
func (e *Engine) StopAll(sprites []Sprite) {
	e.sched.Sync(func() {
		e.halt()
		zero := 0.0
		for _, sp := range sprites {
			pos := sp.InitialPosition
			if err := e.store.SetSpritePosition(sp.ID, PositionUpdate{Position: &pos, MotionStep: &zero}); err != nil {
				e.log.Printf("stop %s: %v", sp.ID, err)
				continue
			}
			_ = e.store.SetSpriteSpeech(sp.ID, nil)
			_ = e.store.ResetSpriteCollisionState(sp.ID)
		}
	})
}

package blockstage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Handle identifies a scheduled frame callback or timer.
type Handle uint64

// FrameFunc is called once on the frame after it was requested. now is the
// scheduler clock after the frame's advance and dt the frame's duration.
type FrameFunc func(now, dt time.Duration)

type scheduled struct {
	handle Handle
	at     time.Duration
	frame  FrameFunc
	timer  func()
	token  *Token
}

// Scheduler owns the queue of work that runs on the next frame. All stepping
// happens on whichever goroutine calls Step; callbacks never run
// concurrently with each other. Other goroutines may request frames, start
// timers and cancel tokens at any time.
type Scheduler struct {
	stepMu sync.Mutex // held for the whole of Step and Sync

	mu     sync.Mutex
	now    time.Duration
	frame  uint64
	next   Handle
	live   map[Handle]*scheduled
	frames []*scheduled
	timers []*scheduled
}

// NewScheduler returns a scheduler whose clock starts at zero.
func NewScheduler() *Scheduler {
	return &Scheduler{live: make(map[Handle]*scheduled)}
}

// Now returns the scheduler clock.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Frame returns the number of completed steps.
func (s *Scheduler) Frame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Pending returns the number of outstanding frame callbacks and timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// NewToken returns a cancellation token whose registry starts empty.
func (s *Scheduler) NewToken() *Token {
	return &Token{s: s, handles: make(map[Handle]struct{})}
}

func (s *Scheduler) add(e *scheduled) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.token != nil && e.token.cancelled {
		return 0
	}
	s.next++
	e.handle = s.next
	s.live[e.handle] = e
	if e.token != nil {
		e.token.handles[e.handle] = struct{}{}
	}
	if e.frame != nil {
		s.frames = append(s.frames, e)
	} else {
		s.timers = append(s.timers, e)
	}
	return e.handle
}

// RequestFrame schedules fn for the next Step. A nil token is allowed. A
// cancelled token schedules nothing and returns the zero handle.
func (s *Scheduler) RequestFrame(tok *Token, fn FrameFunc) Handle {
	return s.add(&scheduled{frame: fn, token: tok})
}

// After schedules fn for the first Step whose clock reaches now+d.
func (s *Scheduler) After(tok *Token, d time.Duration, fn func()) Handle {
	s.mu.Lock()
	at := s.now + d
	s.mu.Unlock()
	return s.add(&scheduled{at: at, timer: fn, token: tok})
}

// Cancel removes a scheduled callback. It reports whether the callback was
// still outstanding.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live[h]
	if !ok {
		return false
	}
	s.release(e)
	return true
}

// release forgets e. Entries left in frames/timers are skipped when reached.
func (s *Scheduler) release(e *scheduled) {
	delete(s.live, e.handle)
	if e.token != nil {
		delete(e.token.handles, e.handle)
	}
}

func (s *Scheduler) claim(e *scheduled) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[e.handle]; !ok {
		return false
	}
	s.release(e)
	return true
}

// Step advances the clock by dt, fires due timers in deadline order, then
// runs every frame callback requested before the step began. Callbacks
// requested during the step run on the next one.
func (s *Scheduler) Step(dt time.Duration) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	s.mu.Lock()
	s.now += dt
	s.frame++
	now := s.now
	var due []*scheduled
	pending := s.timers[:0]
	for _, e := range s.timers {
		if _, ok := s.live[e.handle]; !ok {
			continue
		}
		if e.at <= now {
			due = append(due, e)
		} else {
			pending = append(pending, e)
		}
	}
	s.timers = pending
	frames := s.frames
	s.frames = nil
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].handle < due[j].handle
	})
	for _, e := range due {
		if s.claim(e) {
			e.timer()
		}
	}
	for _, e := range frames {
		if s.claim(e) {
			e.frame(now, dt)
		}
	}
}

// Sync runs fn while no step is in progress. It must not be called from
// inside a scheduled callback.
func (s *Scheduler) Sync(fn func()) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	fn()
}

// Run steps the scheduler on a real-time ticker, advancing the clock by
// interval per tick, until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Step(interval)
		}
	}
}

// Token is a cancellation token for one run. It tracks every callback
// scheduled under it; Cancel drains them all at once.
type Token struct {
	s         *Scheduler
	handles   map[Handle]struct{} // guarded by s.mu
	cancelled bool
}

// Cancel removes every outstanding callback registered under the token and
// refuses new ones. Cancelling twice is a no-op.
func (t *Token) Cancel() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	for h := range t.handles {
		delete(t.s.live, h)
	}
	clear(t.handles)
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.cancelled
}

// Outstanding returns how many callbacks are registered under the token.
func (t *Token) Outstanding() int {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return len(t.handles)
}

package blockstage

import (
	"log"
	"math"
	"os"
	"sort"
	"sync"
	"time"
)

// Collision describes one detected overlap.
type Collision struct {
	SpriteID       string
	OtherID        string
	Direction      float64 // rebound direction of SpriteID
	OtherDirection float64 // rebound direction of OtherID
	Position       Vec2    // SpriteID's position after the revert
	At             time.Duration
}

type motion struct {
	remaining float64
	paused    bool
}

// Physics advances free motion (flings and legacy motion calls) one step per
// frame and resolves overlaps with a simple bounce. It runs beside the
// Engine; both write positions through the same store.
type Physics struct {
	store  SpriteStore
	sched  *Scheduler
	tuning PhysicsTuning
	log    *log.Logger

	// OnCollision, when set, is called from the frame that detected the
	// collision.
	OnCollision func(Collision)

	mu        sync.Mutex
	motions   map[string]*motion
	colliding map[string]int // sprite id -> pending flag resets
	token     *Token
	running   bool
}

// NewPhysics creates an idle physics loop. A nil logger logs to stderr.
func NewPhysics(store SpriteStore, sched *Scheduler, tuning PhysicsTuning, logger *log.Logger) *Physics {
	if logger == nil {
		logger = log.New(os.Stderr, "[blockstage] ", log.LstdFlags)
	}
	return &Physics{
		store:   store,
		sched:   sched,
		tuning:  tuning,
		log:     logger,
		motions:   make(map[string]*motion),
		colliding: make(map[string]int),
		token:     sched.NewToken(),
	}
}

// StartMotion gives spriteID steps of outstanding travel along its current
// direction (negative steps travel backwards), replacing any motion it
// already had. The loop starts if it was idle.
func (p *Physics) StartMotion(spriteID string, steps float64) {
	if math.IsNaN(steps) || math.IsInf(steps, 0) {
		p.log.Printf("%s: invalid motion %v", spriteID, steps)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if steps == 0 {
		delete(p.motions, spriteID)
		_ = p.store.SetSpriteMotion(spriteID, 0)
		return
	}
	p.motions[spriteID] = &motion{remaining: steps}
	_ = p.store.SetSpriteMotion(spriteID, steps)
	p.wake()
}

// Remaining returns spriteID's outstanding distance.
func (p *Physics) Remaining(spriteID string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.motions[spriteID]
	if !ok {
		return 0, false
	}
	return m.remaining, true
}

// Moving returns how many sprites have outstanding motion.
func (p *Physics) Moving() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.motions)
}

// Running reports whether a frame is scheduled.
func (p *Physics) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop drops every motion and cancels the pending frame and pause timers.
// Sprites it was moving get a zero MotionStep, and collision flags waiting on
// a cancelled reset are cleared.
func (p *Physics) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token.Cancel()
	p.token = p.sched.NewToken()
	for id := range p.motions {
		_ = p.store.SetSpriteMotion(id, 0)
	}
	for id := range p.colliding {
		_ = p.store.ResetSpriteCollisionState(id)
	}
	clear(p.motions)
	clear(p.colliding)
	p.running = false
}

// wake requests a frame if none is pending. The caller holds p.mu.
func (p *Physics) wake() {
	if p.running {
		return
	}
	p.running = true
	p.sched.RequestFrame(p.token, p.frame)
}

func (p *Physics) frame(now, _ time.Duration) {
	var hits []Collision
	p.mu.Lock()
	p.running = false
	ids := make([]string, 0, len(p.motions))
	for id := range p.motions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if c, ok := p.advance(id, now); ok {
			hits = append(hits, c)
		}
	}
	for _, m := range p.motions {
		if !m.paused {
			p.wake()
			break
		}
	}
	hook := p.OnCollision
	p.mu.Unlock()

	if hook != nil {
		for _, c := range hits {
			hook(c)
		}
	}
}

func findSprite(sprites []Sprite, id string) (Sprite, bool) {
	for _, s := range sprites {
		if s.ID == id {
			return s, true
		}
	}
	return Sprite{}, false
}

// advance moves one sprite by one step. The caller holds p.mu.
func (p *Physics) advance(id string, now time.Duration) (Collision, bool) {
	m := p.motions[id]
	if m.paused {
		return Collision{}, false
	}
	sprites := p.store.Sprites()
	sp, ok := findSprite(sprites, id)
	if !ok || math.Abs(m.remaining) < 1e-9 {
		delete(p.motions, id)
		if ok {
			_ = p.store.SetSpriteMotion(id, 0)
		}
		return Collision{}, false
	}

	dir := sign(m.remaining)
	length := math.Min(math.Abs(m.remaining), p.tuning.StepLength)
	prev := sp.Position
	next := prev.Add(DirectionVector(sp.Direction).Scale(dir * length))

	cooling := sp.HasCollided && now-sp.LastCollisionTime < ms(p.tuning.CooldownDurationMs)
	if !cooling {
		box := BoxAround(next, p.tuning.SpriteSize)
		for _, other := range sprites {
			if other.ID == id || !other.IsVisible {
				continue
			}
			if box.Intersects(BoxAround(other.Position, p.tuning.SpriteSize)) {
				return p.collide(m, sp, other, prev, now), true
			}
		}
	}

	m.remaining -= dir * length
	step := m.remaining
	if err := p.store.SetSpritePosition(id, PositionUpdate{Position: &next, MotionStep: &step}); err != nil {
		p.log.Printf("%s: motion: %v", id, err)
		delete(p.motions, id)
	}
	return Collision{}, false
}

func (p *Physics) collide(m *motion, sp, other Sprite, prev Vec2, now time.Duration) Collision {
	bounce := BounceDirection(sp.Position, other.Position)
	otherBounce := BounceDirection(other.Position, sp.Position)
	_ = p.store.SetSpriteCollisionState(sp.ID, true, &bounce)
	_ = p.store.SetSpriteCollisionState(other.ID, true, &otherBounce)
	_ = p.store.SetSpritePosition(sp.ID, PositionUpdate{Position: &prev, Direction: &bounce})
	m.paused = true
	p.colliding[sp.ID]++
	p.colliding[other.ID]++

	pause := ms(p.tuning.PauseDurationMs)
	id, otherID := sp.ID, other.ID
	p.sched.After(p.token, pause, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		cur, ok := p.motions[id]
		if !ok || cur != m {
			return
		}
		m.remaining = math.Abs(m.remaining) * p.tuning.EnergyLoss
		m.paused = false
		dir := bounce
		step := m.remaining
		_ = p.store.SetSpritePosition(id, PositionUpdate{Direction: &dir, MotionStep: &step})
		p.wake()
	})
	p.sched.After(p.token, pause, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, sid := range [2]string{id, otherID} {
			p.colliding[sid]--
			if p.colliding[sid] > 0 {
				continue
			}
			delete(p.colliding, sid)
			_ = p.store.ResetSpriteCollisionState(sid)
		}
	})
	return Collision{
		SpriteID:       id,
		OtherID:        otherID,
		Direction:      bounce,
		OtherDirection: otherBounce,
		Position:       prev,
		At:             now,
	}
}

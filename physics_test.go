package blockstage

import (
	"bytes"
	"io"
	"log"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPhysicsHarness(t *testing.T) (*Store, *Scheduler, *Physics, string) {
	t.Helper()
	st := NewStore()
	sched := NewScheduler()
	st.SetClock(sched.Now)
	other := st.AddSprite(SpriteImages[2].URL)
	pos := Vec2{20, 0}
	require.NoError(t, st.SetSpritePosition(other.ID, PositionUpdate{Position: &pos}))
	p := NewPhysics(st, sched, DefaultTuning().Physics, log.New(io.Discard, "", 0))
	return st, sched, p, other.ID
}

func TestPhysicsCollisionBounces(t *testing.T) {
	st, sched, p, otherID := newPhysicsHarness(t)
	var hits []Collision
	p.OnCollision = func(c Collision) { hits = append(hits, c) }

	p.StartMotion("sprite-1", 10)
	assert.True(t, p.Running())
	sched.Step(frame)

	a, _ := st.Sprite("sprite-1")
	b, _ := st.Sprite(otherID)
	assert.True(t, a.IsColliding)
	assert.True(t, b.IsColliding)
	assert.Equal(t, Vec2{}, a.Position, "reverted to the pre-collision position")
	assert.InDelta(t, 270.0, a.Direction, 1e-9)
	assert.InDelta(t, 90.0, b.CollisionDirection, 1e-9)
	assert.Equal(t, frame, a.LastCollisionTime)

	require.Len(t, hits, 1)
	assert.Equal(t, "sprite-1", hits[0].SpriteID)
	assert.Equal(t, otherID, hits[0].OtherID)
	assert.InDelta(t, 270.0, hits[0].Direction, 1e-9)

	remaining, ok := p.Remaining("sprite-1")
	require.True(t, ok)
	assert.Equal(t, 10.0, remaining, "paused motion keeps its distance")
	assert.False(t, p.Running(), "only paused motion left")

	for sched.Now() < 510*time.Millisecond {
		sched.Step(frame)
	}
	a, _ = st.Sprite("sprite-1")
	b, _ = st.Sprite(otherID)
	assert.False(t, a.IsColliding)
	assert.False(t, b.IsColliding)
	assert.True(t, a.HasCollided)
	remaining, _ = p.Remaining("sprite-1")
	assert.InDelta(t, 7.0, remaining, 1e-9)
	assert.True(t, p.Running())

	// Cooldown keeps the rebound from re-colliding while the boxes still
	// overlap.
	sched.Step(frame)
	a, _ = st.Sprite("sprite-1")
	assert.InDelta(t, -1.0, a.Position.X, 1e-9)
	assert.InDelta(t, 6.0, a.MotionStep, 1e-9)
	assert.Len(t, hits, 1)
}

func TestPhysicsIgnoresHiddenSprites(t *testing.T) {
	st, sched, p, otherID := newPhysicsHarness(t)
	require.NoError(t, st.SetSpriteVisibility(otherID, false))

	p.StartMotion("sprite-1", 10)
	for i := 0; i < 10; i++ {
		sched.Step(frame)
	}
	a, _ := st.Sprite("sprite-1")
	assert.InDelta(t, 10.0, a.Position.X, 1e-9)
	assert.False(t, a.IsColliding)

	sched.Step(frame)
	assert.Equal(t, 0, p.Moving())
	assert.False(t, p.Running(), "loop idles once no motion remains")
	assert.Equal(t, 0, sched.Pending())
	a, _ = st.Sprite("sprite-1")
	assert.Equal(t, 0.0, a.MotionStep)
}

func TestPhysicsNegativeMotion(t *testing.T) {
	st, sched, p, otherID := newPhysicsHarness(t)
	require.NoError(t, st.DeleteSprite(otherID))
	p.StartMotion("sprite-1", -3)
	for i := 0; i < 5; i++ {
		sched.Step(frame)
	}
	a, _ := st.Sprite("sprite-1")
	assert.InDelta(t, -3.0, a.Position.X, 1e-9)
}

func TestPhysicsStartMotionZeroAndInvalid(t *testing.T) {
	st, _, p, _ := newPhysicsHarness(t)
	p.StartMotion("sprite-1", 5)
	p.StartMotion("sprite-1", 0)
	_, ok := p.Remaining("sprite-1")
	assert.False(t, ok)
	a, _ := st.Sprite("sprite-1")
	assert.Equal(t, 0.0, a.MotionStep)

	var buf bytes.Buffer
	p.log = log.New(&buf, "", 0)
	p.StartMotion("sprite-1", math.NaN())
	assert.Equal(t, 0, p.Moving())
	assert.Contains(t, buf.String(), "invalid motion")
}

func TestPhysicsStopCancelsPause(t *testing.T) {
	st, sched, p, otherID := newPhysicsHarness(t)
	p.StartMotion("sprite-1", 10)
	sched.Step(frame)
	require.Positive(t, sched.Pending(), "pause timers outstanding")

	p.Stop()
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, 0, p.Moving())
	b, _ := st.Sprite(otherID)
	assert.False(t, b.IsColliding)

	for i := 0; i < 60; i++ {
		sched.Step(frame)
	}
	a, _ := st.Sprite("sprite-1")
	b, _ = st.Sprite(otherID)
	assert.False(t, a.IsColliding, "stop clears flags whose reset it cancelled")
	assert.False(t, b.IsColliding)
	assert.Equal(t, 0.0, a.MotionStep)

	// The loop restarts after a stop.
	p.StartMotion(otherID, 1)
	assert.True(t, p.Running())
}

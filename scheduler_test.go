package blockstage

import (
	"context"
	"testing"
	"time"
)

func TestSchedulerFramesRunNextStep(t *testing.T) {
	s := NewScheduler()
	var order []string
	s.RequestFrame(nil, func(now, dt time.Duration) {
		order = append(order, "a")
		if now != 16*time.Millisecond || dt != 16*time.Millisecond {
			t.Errorf("now=%v dt=%v", now, dt)
		}
		s.RequestFrame(nil, func(_, _ time.Duration) { order = append(order, "c") })
	})
	s.RequestFrame(nil, func(_, _ time.Duration) { order = append(order, "b") })

	s.Step(16 * time.Millisecond)
	if got := len(order); got != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("after step 1: %v", order)
	}
	s.Step(16 * time.Millisecond)
	if len(order) != 3 || order[2] != "c" {
		t.Fatalf("after step 2: %v", order)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", s.Pending())
	}
	if s.Frame() != 2 {
		t.Errorf("Frame = %d, want 2", s.Frame())
	}
}

func TestSchedulerTimersFireInDeadlineOrder(t *testing.T) {
	s := NewScheduler()
	var order []int
	s.After(nil, 30*time.Millisecond, func() { order = append(order, 30) })
	s.After(nil, 10*time.Millisecond, func() { order = append(order, 10) })
	s.After(nil, 10*time.Millisecond, func() { order = append(order, 11) })
	s.RequestFrame(nil, func(_, _ time.Duration) { order = append(order, 0) })

	s.Step(5 * time.Millisecond)
	if len(order) != 1 || order[0] != 0 {
		t.Fatalf("after 5ms: %v", order)
	}
	s.Step(50 * time.Millisecond)
	want := []int{0, 10, 11, 30}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestTokenCancelDrainsRegistry(t *testing.T) {
	s := NewScheduler()
	tok := s.NewToken()
	fired := 0
	s.RequestFrame(tok, func(_, _ time.Duration) { fired++ })
	s.After(tok, time.Millisecond, func() { fired++ })
	other := s.RequestFrame(nil, func(_, _ time.Duration) { fired += 100 })

	if tok.Outstanding() != 2 || s.Pending() != 3 {
		t.Fatalf("Outstanding=%d Pending=%d", tok.Outstanding(), s.Pending())
	}
	tok.Cancel()
	tok.Cancel()
	if tok.Outstanding() != 0 || s.Pending() != 1 {
		t.Fatalf("after cancel Outstanding=%d Pending=%d", tok.Outstanding(), s.Pending())
	}
	if h := s.RequestFrame(tok, func(_, _ time.Duration) { fired++ }); h != 0 {
		t.Error("cancelled token accepted a new callback")
	}

	s.Step(10 * time.Millisecond)
	if fired != 100 {
		t.Errorf("fired = %d, want only the untokened callback", fired)
	}
	if s.Cancel(other) {
		t.Error("Cancel of a fired callback should report false")
	}
}

func TestTokenReleasesFiredHandles(t *testing.T) {
	s := NewScheduler()
	tok := s.NewToken()
	s.RequestFrame(tok, func(_, _ time.Duration) {})
	s.Step(time.Millisecond)
	if tok.Outstanding() != 0 {
		t.Errorf("Outstanding = %d after the callback fired", tok.Outstanding())
	}
}

func TestSchedulerCancelHandle(t *testing.T) {
	s := NewScheduler()
	fired := false
	h := s.After(nil, time.Millisecond, func() { fired = true })
	if !s.Cancel(h) {
		t.Fatal("Cancel should report true for an outstanding timer")
	}
	s.Step(time.Second)
	if fired {
		t.Error("cancelled timer fired")
	}
}

func TestSchedulerRunStopsWithContext(t *testing.T) {
	s := NewScheduler()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Run(ctx, time.Millisecond)
	if err != context.DeadlineExceeded {
		t.Errorf("Run returned %v", err)
	}
	if s.Frame() == 0 {
		t.Error("Run never stepped")
	}
}

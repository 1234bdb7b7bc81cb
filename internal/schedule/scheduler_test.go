package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/djlord-it/devtrigger/internal/domain"
	"github.com/djlord-it/devtrigger/internal/testutil"
	"github.com/djlord-it/devtrigger/internal/trigger"
)

type mockHandler struct {
	mu     sync.Mutex
	events []domain.TriggerEvent
}

func (h *mockHandler) Handle(ev domain.TriggerEvent) trigger.Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return trigger.DecisionQueued
}

func (h *mockHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func newTestScheduler(t *testing.T, expr string) (*Scheduler, *mockHandler, *testutil.FakeClock) {
	t.Helper()
	sched, err := Parse(expr, time.UTC)
	if err != nil {
		t.Fatalf("Parse(%q): %v", expr, err)
	}
	clock := testutil.NewFakeClock(time.Date(2024, 1, 15, 10, 0, 30, 0, time.UTC))
	h := &mockHandler{}
	s := New(Config{Path: "/project"}, sched, h)
	s.clock = clock.Now
	s.nextFire = sched.Next(clock.Now())
	return s, h, clock
}

func TestProcessTick_NotDue(t *testing.T) {
	s, h, clock := newTestScheduler(t, "* * * * *")

	clock.Advance(10 * time.Second)
	s.processTick()

	if h.count() != 0 {
		t.Errorf("events = %d, want 0 before the minute boundary", h.count())
	}
}

func TestProcessTick_Due(t *testing.T) {
	s, h, clock := newTestScheduler(t, "* * * * *")

	clock.Advance(30 * time.Second)
	s.processTick()

	if h.count() != 1 {
		t.Fatalf("events = %d, want 1", h.count())
	}
	ev := h.events[0]
	if ev.Source != domain.TriggerSourceSchedule || ev.Path != "/project" {
		t.Errorf("event = %+v", ev)
	}

	// same window again: nothing new
	clock.Advance(time.Second)
	s.processTick()
	if h.count() != 1 {
		t.Errorf("events = %d, want 1", h.count())
	}
}

func TestProcessTick_MissedFiringsCollapse(t *testing.T) {
	s, h, clock := newTestScheduler(t, "* * * * *")

	clock.Advance(5 * time.Minute)
	s.processTick()

	if h.count() != 1 {
		t.Errorf("events = %d, want 1 for five missed firings", h.count())
	}
}

func TestProcessTick_EveryDescriptor(t *testing.T) {
	s, h, clock := newTestScheduler(t, "@every 30s")

	for i := 0; i < 4; i++ {
		clock.Advance(15 * time.Second)
		s.processTick()
	}

	if h.count() != 2 {
		t.Errorf("events = %d, want 2 over 60s", h.count())
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "60 * * * *", "@every banana"} {
		if _, err := Parse(expr, time.UTC); err == nil {
			t.Errorf("Parse(%q) should fail", expr)
		}
	}
}

func TestParse_TimezoneApplied(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tz database unavailable")
	}
	sched, err := Parse("0 9 * * *", loc)
	if err != nil {
		t.Fatal(err)
	}
	next := sched.Next(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	if next.In(loc).Hour() != 9 {
		t.Errorf("next = %v, want 09:00 New York", next.In(loc))
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	sched, _ := Parse("@every 1h", time.UTC)
	s := New(Config{TickInterval: 10 * time.Millisecond}, sched, &mockHandler{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

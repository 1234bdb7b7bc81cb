// Package schedule emits trigger events on a cron schedule.
package schedule

import (
	"context"
	"log"
	"time"

	"github.com/djlord-it/devtrigger/internal/domain"
	"github.com/djlord-it/devtrigger/internal/trigger"
)

const DefaultTickInterval = time.Second

type Handler interface {
	Handle(event domain.TriggerEvent) trigger.Decision
}

type Config struct {
	TickInterval time.Duration
	// Path is attached to every emitted event.
	Path string
}

type Scheduler struct {
	config   Config
	sched    Schedule
	handler  Handler
	clock    func() time.Time
	nextFire time.Time
}

func New(config Config, sched Schedule, handler Handler) *Scheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	return &Scheduler{
		config:  config,
		sched:   sched,
		handler: handler,
		clock:   time.Now,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	log.Printf("scheduler: started, tick=%s path=%s", s.config.TickInterval, s.config.Path)
	s.nextFire = s.sched.Next(s.clock())

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.processTick()
		}
	}
}

// processTick emits one event if any firing fell due since the last tick.
// Several missed firings collapse into one reload.
func (s *Scheduler) processTick() {
	now := s.clock()

	due := 0
	const maxIterations = 1000
	for !s.nextFire.IsZero() && !s.nextFire.After(now) && due < maxIterations {
		due++
		s.nextFire = s.sched.Next(s.nextFire)
	}
	if due == maxIterations {
		s.nextFire = s.sched.Next(now)
	}

	if due == 0 {
		return
	}
	if due > 1 {
		log.Printf("scheduler: %d firings due, emitting one", due)
	}

	event := domain.NewTriggerEvent(domain.TriggerSourceSchedule, s.config.Path)
	decision := s.handler.Handle(event)
	log.Printf("scheduler: emitted event=%s decision=%s", event.ID, decision)
}

package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Parse accepts five-field cron expressions and descriptors such as
// "@every 30s" or "@hourly". Times are evaluated in loc.
func Parse(expression string, loc *time.Location) (Schedule, error) {
	sched, err := cron.ParseStandard(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &schedule{sched: sched, loc: loc}, nil
}

type Schedule interface {
	Next(after time.Time) time.Time
}

type schedule struct {
	sched cron.Schedule
	loc   *time.Location
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(s.loc))
}

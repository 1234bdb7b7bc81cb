package domain

import (
	"time"

	"github.com/google/uuid"
)

type TriggerSource string

const (
	TriggerSourceSave     TriggerSource = "save"
	TriggerSourceChange   TriggerSource = "change"
	TriggerSourceSchedule TriggerSource = "schedule"
	TriggerSourceManual   TriggerSource = "manual"
)

// TriggerEvent is created by a trigger source for every observed save or change.
// It is immutable and discarded once its outcome has been reported.
type TriggerEvent struct {
	ID     uuid.UUID
	Source TriggerSource
	Path   string // optional; events without a path never dispatch

	ObservedAt time.Time
}

// NewTriggerEvent stamps a new event with a fresh ID and the current UTC time.
func NewTriggerEvent(source TriggerSource, path string) TriggerEvent {
	return TriggerEvent{
		ID:         uuid.New(),
		Source:     source,
		Path:       path,
		ObservedAt: time.Now().UTC(),
	}
}

func (e TriggerEvent) HasPath() bool {
	return e.Path != ""
}

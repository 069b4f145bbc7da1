package importer

import "time"

// ProgressKind identifies a progress event.
type ProgressKind uint8

const (
	ProgressJobStarted ProgressKind = iota
	ProgressJobFinished
	ProgressPhaseUpdate
	ProgressItemStarted
	ProgressItemCollected
	ProgressItemFinished
)

func (k ProgressKind) String() string {
	switch k {
	case ProgressJobStarted:
		return "job-started"
	case ProgressJobFinished:
		return "job-finished"
	case ProgressPhaseUpdate:
		return "phase-update"
	case ProgressItemStarted:
		return "item-started"
	case ProgressItemCollected:
		return "item-collected"
	case ProgressItemFinished:
		return "item-finished"
	}
	return "unknown"
}

// Pipeline phase names reported in progress events and CLI reports.
const (
	PhaseHashing    = "hashing"
	PhaseValidation = "validation"
	PhaseCooking    = "cooking"
	PhaseEmit       = "emit"
)

// ProgressEvent is emitted on the service loop while a job advances.
// Overall is in [0, 1]; item fields are set for per-item kinds only.
type ProgressEvent struct {
	Kind     ProgressKind
	Phase    string
	Overall  float64
	ItemKind string
	ItemName string
	At       time.Time
}

// ProgressFunc receives progress events. Called on the service goroutine.
type ProgressFunc func(ProgressEvent)

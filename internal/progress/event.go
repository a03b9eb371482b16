package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the job family an Event belongs to.
type Kind string

// Supported job kinds.
const (
	KindCampaign Kind = "campaign"
	KindImport   Kind = "import"
)

// Stage denotes the lifecycle milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageQueued    Stage = "queued"
	StageRunning   Stage = "running"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
	StageCancelled Stage = "cancelled"
)

// Terminal reports whether the stage ends a job.
func (s Stage) Terminal() bool {
	switch s {
	case StageDone, StageFailed, StageCancelled:
		return true
	default:
		return false
	}
}

// Event is one progress report from a campaign or import run. Row counts
// are deltas since the job's previous event, never absolutes; sinks that
// persist totals accumulate them.
type Event struct {
	// JobID identifies the campaign or import run.
	JobID uuid.UUID
	// Kind is the job family.
	Kind Kind
	// Stage is the lifecycle milestone that occurred.
	Stage Stage
	// RowsDone is how many rows (recipients, CSV lines) completed since
	// the previous event.
	RowsDone int64
	// RowsFailed is how many rows failed since the previous event.
	RowsFailed int64
	// Message lets emitters attach low-volume context (e.g. error text).
	Message string
	// At is the UTC timestamp recorded by the emitter.
	At time.Time
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == uuid.Nil {
		return errors.New("job id is required")
	}
	if e.At.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindCampaign, KindImport:
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	switch e.Stage {
	case StageQueued, StageRunning, StageDone, StageFailed, StageCancelled:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.RowsDone < 0 || e.RowsFailed < 0 {
		return errors.New("row counts must be >= 0")
	}
	return nil
}

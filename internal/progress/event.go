package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the lifecycle milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobQueued Stage = "JOB_QUEUED"
	StageJobDone   Stage = "JOB_DONE"
	StageJobError  Stage = "JOB_ERROR"
)

// Event captures one job transition within a run.
type Event struct {
	// Project names the run the job belongs to.
	Project string
	// TS is the timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage  Stage
	Engine string
	Domain string
	// Derived marks jobs spawned by greedy expansion.
	Derived bool
	// Emails is the number of addresses a finished job found.
	Emails int
	// Dur is the job duration for finished jobs.
	Dur time.Duration
	// Note carries the error text of failed jobs.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.Project == "" {
		return errors.New("project is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobQueued, StageJobDone, StageJobError:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Domain == "" {
		return errors.New("domain is required")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Emails < 0 {
		return errors.New("emails must be >= 0")
	}
	return nil
}

// Finished reports whether the event closes a job.
func (e Event) Finished() bool {
	return e.Stage == StageJobDone || e.Stage == StageJobError
}

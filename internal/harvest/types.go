// Package harvest defines the core types shared across the harvesting subsystems.
package harvest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a harvesting job.
type JobStatus string

// Job status values recorded on outcomes.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// RunStatus is the state of a whole run as reported by the API.
type RunStatus string

// Run status values.
const (
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusFailed  RunStatus = "failed"
)

// TimeLayout is the timestamp format used in outcome records.
const TimeLayout = "2006-01-02 15:04:05"

// Job is one harvesting request. It is treated as immutable once built.
type Job struct {
	Engine   string `json:"engine" mapstructure:"engine"`
	Domain   string `json:"domain" mapstructure:"domain"`
	Modifier string `json:"modifier,omitempty" mapstructure:"modifier"`
	Limit    int    `json:"limit" mapstructure:"limit"`
	Greedy   bool   `json:"greedy" mapstructure:"greedy"`
	Fuzzy    bool   `json:"fuzzy" mapstructure:"fuzzy"`
}

// Validate checks the fields a search module needs.
func (j Job) Validate() error {
	switch {
	case strings.TrimSpace(j.Engine) == "":
		return fmt.Errorf("%w: engine is required", ErrInvalidJobList)
	case strings.TrimSpace(j.Domain) == "":
		return fmt.Errorf("%w: domain is required", ErrInvalidJobList)
	case strings.ContainsAny(j.Domain, `/\`) || strings.Contains(j.Domain, ".."):
		return fmt.Errorf("%w: invalid domain %q", ErrInvalidJobList, j.Domain)
	case j.Limit <= 0:
		return fmt.Errorf("%w: limit must be > 0 for %s", ErrInvalidJobList, j.Domain)
	}
	return nil
}

// ModuleConfig is the slice of a job handed to a search module.
type ModuleConfig struct {
	Domain   string
	Modifier string
	Limit    int
	Fuzzy    bool
}

// Config projects the job onto the module configuration.
func (j Job) Config() ModuleConfig {
	return ModuleConfig{
		Domain:   j.Domain,
		Modifier: j.Modifier,
		Limit:    j.Limit,
		Fuzzy:    j.Fuzzy,
	}
}

// Results is what a search module returns.
type Results struct {
	Emails    []string `json:"emails"`
	Processed int      `json:"processed"`
}

// Outcome is the completed record of a job.
type Outcome struct {
	Job
	Project   string
	Status    JobStatus
	StartTime time.Time
	EndTime   time.Time
	Results   Results
	Err       error
}

// Duration is derived from the recorded start and end times.
func (o Outcome) Duration() time.Duration {
	return o.EndTime.Sub(o.StartTime)
}

// Failed reports whether the job ended in the failed state.
func (o Outcome) Failed() bool {
	return o.Status == JobStatusFailed
}

// ErrorText returns the recorded failure, if any.
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

type outcomeRecord struct {
	Job
	Project   string    `json:"project"`
	Status    JobStatus `json:"status"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Duration  string    `json:"duration"`
	Results   Results   `json:"results"`
	Error     string    `json:"error,omitempty"`
}

// MarshalJSON renders the outcome in its interchange shape.
func (o Outcome) MarshalJSON() ([]byte, error) {
	results := o.Results
	if results.Emails == nil {
		results.Emails = []string{}
	}
	rec := outcomeRecord{
		Job:       o.Job,
		Project:   o.Project,
		Status:    o.Status,
		StartTime: o.StartTime.Format(TimeLayout),
		EndTime:   o.EndTime.Format(TimeLayout),
		Duration:  strconv.FormatInt(int64(o.Duration()/time.Second), 10),
		Results:   results,
		Error:     o.ErrorText(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal outcome: %w", err)
	}
	return data, nil
}

package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

// ErrRunNotFound is returned for unknown projects.
var ErrRunNotFound = errors.New("run not found")

// OutcomeLister exposes the outcomes gathered so far by a run.
type OutcomeLister interface {
	Results() []harvest.Outcome
}

// Run is the API-facing record of one orchestrated run.
type Run struct {
	Project   string
	Status    harvest.RunStatus
	Jobs      int
	Started   time.Time
	Finished  *time.Time
	ErrorText string
	Source    OutcomeLister
	Progress  Progress
}

// Progress counts job transitions reported for a run.
type Progress struct {
	Queued    int `json:"queued"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Derived   int `json:"derived"`
	Emails    int `json:"emails"`
}

// Pending is the number of queued jobs that have not finished.
func (p Progress) Pending() int {
	return p.Queued - p.Completed - p.Failed
}

func (p Progress) add(d Progress) Progress {
	p.Queued += d.Queued
	p.Completed += d.Completed
	p.Failed += d.Failed
	p.Derived += d.Derived
	p.Emails += d.Emails
	return p
}

// Outcomes returns the outcomes recorded for the run so far.
func (r Run) Outcomes() []harvest.Outcome {
	if r.Source == nil {
		return []harvest.Outcome{}
	}
	return r.Source.Results()
}

// RunStore tracks runs started through the API.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]Run
	now  func() time.Time
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]Run),
		now:  time.Now,
	}
}

// CreateRun stores a new run in the running state.
func (s *RunStore) CreateRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.Project]; exists {
		return errors.New("run already exists")
	}
	if run.Status == "" {
		run.Status = harvest.RunStatusRunning
	}
	if run.Started.IsZero() {
		run.Started = s.now()
	}
	s.runs[run.Project] = run
	return nil
}

// FinishRun records the terminal state of a run. A nil err means done.
func (s *RunStore) FinishRun(_ context.Context, project string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[project]
	if !ok {
		return ErrRunNotFound
	}
	run.Status = harvest.RunStatusDone
	if err != nil {
		run.Status = harvest.RunStatusFailed
		run.ErrorText = err.Error()
	}
	finished := s.now()
	run.Finished = &finished
	s.runs[project] = run
	return nil
}

// AddProgress adds delta to the counters of a run.
func (s *RunStore) AddProgress(_ context.Context, project string, delta Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[project]
	if !ok {
		return ErrRunNotFound
	}
	run.Progress = run.Progress.add(delta)
	s.runs[project] = run
	return nil
}

// GetRun fetches a run by project name.
func (s *RunStore) GetRun(_ context.Context, project string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[project]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

// ListRuns returns every run, newest first.
func (s *RunStore) ListRuns(_ context.Context) []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.After(out[j].Started) })
	return out
}

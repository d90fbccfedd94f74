package sinks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/progress"
	"github.com/JakeFAU/frisbee/internal/storage/memory"
)

// ProgressRecorder receives per-run counter deltas.
type ProgressRecorder interface {
	AddProgress(ctx context.Context, project string, delta memory.Progress) error
}

// RunSink folds events into per-run counters, one write per run and batch.
type RunSink struct {
	runs   ProgressRecorder
	logger *zap.Logger
}

// NewRunSink constructs a RunSink for the provided recorder.
func NewRunSink(runs ProgressRecorder, logger *zap.Logger) *RunSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunSink{runs: runs, logger: logger}
}

// Consume collapses the batch per project. Runs the recorder does not know,
// such as CLI runs, are skipped.
func (s *RunSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.runs == nil {
		return nil
	}
	deltas := make(map[string]memory.Progress)
	order := make([]string, 0)
	for _, evt := range batch {
		d, seen := deltas[evt.Project]
		if !seen {
			order = append(order, evt.Project)
		}
		switch evt.Stage {
		case progress.StageJobQueued:
			d.Queued++
			if evt.Derived {
				d.Derived++
			}
		case progress.StageJobDone:
			d.Completed++
			d.Emails += evt.Emails
		case progress.StageJobError:
			d.Failed++
			d.Emails += evt.Emails
		}
		deltas[evt.Project] = d
	}

	for _, project := range order {
		err := s.runs.AddProgress(ctx, project, deltas[project])
		switch {
		case errors.Is(err, memory.ErrRunNotFound):
			s.logger.Debug("progress for untracked run", zap.String("project", project))
		case err != nil:
			return fmt.Errorf("record progress for %s: %w", project, err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *RunSink) Close(context.Context) error {
	return nil
}

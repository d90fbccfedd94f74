// Package worker implements the job execution loop of the shared pool.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/clock/system"
	"github.com/JakeFAU/frisbee/internal/harvest"
	"github.com/JakeFAU/frisbee/internal/metrics"
)

// Worker consumes tasks and runs the search module for each job.
type Worker struct {
	id     int
	queue  harvest.Queue
	loader harvest.Loader
	clock  harvest.Clock
	logger *zap.Logger
}

// New constructs a Worker.
func New(id int, queue harvest.Queue, loader harvest.Loader, clock harvest.Clock, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New(nil)
	}
	return &Worker{
		id:     id,
		queue:  queue,
		loader: loader,
		clock:  clock,
		logger: logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming tasks until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, harvest.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job",
			zap.String("engine", task.Job.Engine),
			zap.String("domain", task.Job.Domain),
		)
		outcome := w.Execute(ctx, task.Job)
		w.deliver(ctx, task, outcome)
	}
}

// Execute runs one job to completion. It never returns a partially built
// outcome: failures and panics become failed outcomes.
func (w *Worker) Execute(ctx context.Context, job harvest.Job) harvest.Outcome {
	start := w.clock.Now()
	outcome := harvest.Outcome{
		Job:       job,
		Status:    harvest.JobStatusRunning,
		StartTime: start,
	}

	metrics.IncActiveWorkers()
	results, err := w.search(ctx, job)
	metrics.DecActiveWorkers()

	end := w.clock.Now()
	if end.Before(start) {
		end = start
	}
	outcome.EndTime = end
	outcome.Results = results
	outcome.Err = err
	outcome.Status = harvest.JobStatusCompleted
	if err != nil {
		outcome.Status = harvest.JobStatusFailed
	}

	metrics.ObserveJob(job.Engine, string(outcome.Status), outcome.Duration())
	metrics.ObserveEmails(job.Engine, len(results.Emails))

	fields := []zap.Field{
		zap.String("engine", job.Engine),
		zap.String("domain", job.Domain),
		zap.Int("emails", len(results.Emails)),
		zap.Int("processed", results.Processed),
		zap.Duration("duration", outcome.Duration()),
	}
	if err != nil {
		w.logger.Warn("job failed", append(fields, zap.Error(err))...)
	} else {
		w.logger.Info("job completed", fields...)
	}
	return outcome
}

func (w *Worker) search(ctx context.Context, job harvest.Job) (results harvest.Results, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module %q panicked: %v", job.Engine, r)
		}
	}()
	module, err := w.loader.Load(job.Engine, job)
	if err != nil {
		return harvest.Results{}, fmt.Errorf("load module: %w", err)
	}
	results, err = module.Search(ctx)
	if err != nil {
		return results, fmt.Errorf("search %s: %w", job.Domain, err)
	}
	return results, nil
}

func (w *Worker) deliver(ctx context.Context, task harvest.Task, outcome harvest.Outcome) {
	if task.Reply == nil {
		return
	}
	select {
	case task.Reply <- outcome:
	case <-ctx.Done():
		w.logger.Warn("outcome dropped on shutdown", zap.String("domain", task.Job.Domain))
	}
}

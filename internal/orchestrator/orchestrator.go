// Package orchestrator runs job lists on a shared worker pool, persists each
// outcome as it arrives and expands greedy jobs into follow-up searches.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/clock/system"
	"github.com/JakeFAU/frisbee/internal/dispatcher"
	"github.com/JakeFAU/frisbee/internal/harvest"
	"github.com/JakeFAU/frisbee/internal/id/project"
	"github.com/JakeFAU/frisbee/internal/metrics"
	"github.com/JakeFAU/frisbee/internal/progress"
	"github.com/JakeFAU/frisbee/internal/storage/memory"
)

// Persist results recorded on frisbee_persist_total.
const (
	persistOK      = "ok"
	persistError   = "error"
	persistSkipped = "skipped"
)

// DefaultPoolConfig sizes the pool created when none is injected.
var DefaultPoolConfig = dispatcher.PoolConfig{Workers: 25, QueueDepth: 64}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPool injects a shared pool. The orchestrator never stops an injected pool.
func WithPool(pool harvest.Pool) Option {
	return func(o *Orchestrator) { o.pool = pool }
}

// WithPoolConfig sizes the pool created on first use.
func WithPoolConfig(cfg dispatcher.PoolConfig) Option {
	return func(o *Orchestrator) { o.poolCfg = cfg }
}

// WithSink sets the destination outcomes are persisted to.
func WithSink(sink harvest.Sink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithProject overrides the generated run name.
func WithProject(name string) Option {
	return func(o *Orchestrator) { o.project = strings.TrimSpace(name) }
}

// WithClock sets the clock used by an owned pool and for synthesized outcomes.
func WithClock(clock harvest.Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithProgress reports job transitions to e.
func WithProgress(e progress.Emitter) Option {
	return func(o *Orchestrator) { o.progress = e }
}

// Orchestrator owns one run: its name, its result store and its view of the pool.
type Orchestrator struct {
	loader   harvest.Loader
	clock    harvest.Clock
	sink     harvest.Sink
	project  string
	store    *memory.ResultStore
	logger   *zap.Logger
	poolCfg  dispatcher.PoolConfig
	progress progress.Emitter

	mu    sync.Mutex
	pool  harvest.Pool
	owned *dispatcher.Dispatcher
}

// New builds an Orchestrator resolving engines through loader.
func New(loader harvest.Loader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		loader:  loader,
		store:   memory.NewResultStore(),
		poolCfg: DefaultPoolConfig,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = system.New(nil)
	}
	if o.project == "" {
		o.project = project.New().Name()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.Named("orchestrator").With(zap.String("project", o.project))
	return o
}

// Project returns the run name stamped on every outcome.
func (o *Orchestrator) Project() string {
	return o.project
}

// Results returns every outcome recorded so far in arrival order.
func (o *Orchestrator) Results() []harvest.Outcome {
	return o.store.Outcomes()
}

// Processed returns the domains searched or scheduled in this run.
func (o *Orchestrator) Processed() []string {
	return o.store.Processed()
}

// Search validates jobs, runs them and every job derived from greedy outcomes,
// and returns once all of them have completed. Job failures are recorded on
// their outcomes; only an invalid job list or a finished context is returned.
func (o *Orchestrator) Search(ctx context.Context, jobs []harvest.Job) error {
	if err := harvest.ValidateJobs(jobs); err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}
	o.logger.Info("search started", zap.Int("jobs", len(jobs)))
	if err := o.search(ctx, o.ensurePool(ctx), jobs, false); err != nil {
		return err
	}
	o.logger.Info("search finished", zap.Int("outcomes", o.store.Len()))
	return nil
}

// Close stops a pool created by the orchestrator.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	owned := o.owned
	o.owned, o.pool = nil, nil
	o.mu.Unlock()
	if owned != nil {
		owned.Stop()
	}
}

func (o *Orchestrator) ensurePool(ctx context.Context) harvest.Pool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pool != nil {
		return o.pool
	}
	owned := dispatcher.NewPool(o.poolCfg, o.loader, o.clock, o.logger)
	owned.Start(context.WithoutCancel(ctx))
	o.owned = owned
	o.pool = owned
	return owned
}

// search submits jobs to pool and handles their outcomes in arrival order.
// Greedy expansion recurses on the same pool before the next outcome is handled.
func (o *Orchestrator) search(ctx context.Context, pool harvest.Pool, jobs []harvest.Job, derived bool) error {
	replies := make(chan harvest.Outcome, len(jobs))
	pending := 0
	for _, job := range jobs {
		o.store.MarkProcessed(job.Domain)
		o.emit(progress.Event{Stage: progress.StageJobQueued, Engine: job.Engine, Domain: job.Domain, Derived: derived})
		if err := pool.Submit(ctx, harvest.Task{Job: job, Reply: replies}); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("submit %s: %w", job.Domain, ctx.Err())
			}
			o.logger.Error("submit failed", zap.String("domain", job.Domain), zap.Error(err))
			if err := o.complete(ctx, pool, o.rejected(job, err), derived); err != nil {
				return err
			}
			continue
		}
		pending++
	}

	for ; pending > 0; pending-- {
		select {
		case outcome := <-replies:
			if err := o.complete(ctx, pool, outcome, derived); err != nil {
				return err
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d outcomes: %w", pending, ctx.Err())
		}
	}
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, pool harvest.Pool, outcome harvest.Outcome, derived bool) error {
	outcome.Project = o.project
	o.store.MarkProcessed(outcome.Domain)
	o.store.Append(outcome)
	stage := progress.StageJobDone
	if outcome.Failed() {
		stage = progress.StageJobError
	}
	o.emit(progress.Event{
		Stage:   stage,
		Engine:  outcome.Engine,
		Domain:  outcome.Domain,
		Derived: derived,
		Emails:  len(outcome.Results.Emails),
		Dur:     outcome.Duration(),
		Note:    outcome.ErrorText(),
	})
	if err := o.Persist(ctx, outcome); err != nil {
		o.logger.Warn("persist failed", zap.String("domain", outcome.Domain), zap.Error(err))
	}

	if !outcome.Greedy {
		return nil
	}
	children := DeriveJobs(outcome, o.store)
	if len(children) == 0 {
		return nil
	}
	metrics.ObserveDerivedJobs(len(children))
	o.logger.Info("greedy expansion",
		zap.String("domain", outcome.Domain),
		zap.Int("derived", len(children)),
	)
	return o.search(ctx, pool, children, true)
}

// Persist hands outcome to the sink once per domain per run. A failed write
// leaves the domain eligible for another attempt.
func (o *Orchestrator) Persist(ctx context.Context, outcome harvest.Outcome) error {
	if o.sink == nil {
		return nil
	}
	if outcome.Project == "" {
		outcome.Project = o.project
	}
	if !o.store.MarkPersisted(outcome.Domain) {
		metrics.ObservePersist(persistSkipped)
		return nil
	}
	if err := o.sink.Persist(ctx, outcome); err != nil {
		o.store.UnmarkPersisted(outcome.Domain)
		metrics.ObservePersist(persistError)
		return fmt.Errorf("persist %s: %w", outcome.Domain, err)
	}
	metrics.ObservePersist(persistOK)
	return nil
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.progress == nil {
		return
	}
	evt.Project = o.project
	evt.TS = o.clock.Now()
	o.progress.Emit(evt)
}

func (o *Orchestrator) rejected(job harvest.Job, err error) harvest.Outcome {
	now := o.clock.Now()
	return harvest.Outcome{
		Job:       job,
		Status:    harvest.JobStatusFailed,
		StartTime: now,
		EndTime:   now,
		Err:       fmt.Errorf("submit: %w", err),
	}
}

// Package api exposes the HTTP interface for starting and inspecting harvest runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/config"
	"github.com/JakeFAU/frisbee/internal/harvest"
	"github.com/JakeFAU/frisbee/internal/metrics"
	"github.com/JakeFAU/frisbee/internal/middleware"
	"github.com/JakeFAU/frisbee/internal/orchestrator"
	"github.com/JakeFAU/frisbee/internal/progress"
	"github.com/JakeFAU/frisbee/internal/storage/memory"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

// EngineLister reports the registered engine names.
type EngineLister interface {
	Names() []string
}

// Deps groups the collaborators shared by every run started through the API.
type Deps struct {
	Loader   harvest.Loader
	Engines  EngineLister
	Pool     harvest.Pool
	Sink     harvest.Sink
	Clock    harvest.Clock
	Runs     *memory.RunStore
	Progress progress.Emitter
	Config   config.Config
	Logger   *zap.Logger
}

// Server wires HTTP handlers to the orchestrator and run store.
type Server struct {
	router chi.Router
	deps   Deps
	logger *zap.Logger

	// base outlives individual requests; runs are bound to it.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Runs == nil {
		deps.Runs = memory.NewRunStore()
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:   deps,
		logger: deps.Logger.Named("api"),
		base:   base,
		cancel: cancel,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(deps.Logger))
	r.Use(middleware.Recover(s.logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if deps.Config.Auth.Enabled {
			r.Use(middleware.APIKey(deps.Config.Auth.APIKey))
		}
		r.Get("/engines", s.listEngines)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Post("/", s.submitRun)
			r.Post("/preset", s.submitPreset)
			r.Get("/{project}", s.getRun)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Wait blocks until every run started by the server has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Shutdown cancels in-flight runs and waits for them to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for runs: %w", ctx.Err())
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Pool == nil || s.deps.Loader == nil {
		writeError(w, http.StatusServiceUnavailable, "worker pool not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listEngines(w http.ResponseWriter, _ *http.Request) {
	names := []string{}
	if s.deps.Engines != nil {
		names = s.deps.Engines.Names()
	}
	writeJSON(w, http.StatusOK, map[string][]string{"engines": names})
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.decodeJobs(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.start(w, r, jobs)
}

type presetRequest struct {
	Name string `json:"name"`
}

func (s *Server) submitPreset(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing preset name")
		return
	}
	jobs, err := s.deps.Config.Preset(req.Name)
	switch {
	case errors.Is(err, config.ErrUnknownPreset):
		writeError(w, http.StatusNotFound, "preset not found")
		return
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.start(w, r, jobs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run, true))
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.deps.Runs.ListRuns(r.Context())
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run, false))
	}
	writeJSON(w, http.StatusOK, map[string][]runResponse{"runs": out})
}

// decodeJobs parses a job array, filling engine and limit defaults before
// validation. An empty array is a valid, empty run.
func (s *Server) decodeJobs(body io.Reader) ([]harvest.Job, error) {
	jobs, err := harvest.ParseJobs(body)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	for i := range jobs {
		jobs[i] = s.deps.Config.WithDefaults(jobs[i])
	}
	if err := harvest.ValidateJobs(jobs); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return jobs, nil
}

// start registers a run and searches it in the background on the shared pool.
func (s *Server) start(w http.ResponseWriter, r *http.Request, jobs []harvest.Job) {
	opts := []orchestrator.Option{
		orchestrator.WithPool(s.deps.Pool),
		orchestrator.WithLogger(s.deps.Logger),
	}
	if s.deps.Sink != nil {
		opts = append(opts, orchestrator.WithSink(s.deps.Sink))
	}
	if s.deps.Clock != nil {
		opts = append(opts, orchestrator.WithClock(s.deps.Clock))
	}
	if s.deps.Progress != nil {
		opts = append(opts, orchestrator.WithProgress(s.deps.Progress))
	}
	orch := orchestrator.New(s.deps.Loader, opts...)

	run := memory.Run{Project: orch.Project(), Jobs: len(jobs), Source: orch}
	if err := s.deps.Runs.CreateRun(r.Context(), run); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := orch.Search(s.base, jobs)
		if err != nil {
			s.logger.Error("run failed", zap.String("project", orch.Project()), zap.Error(err))
		}
		if ferr := s.deps.Runs.FinishRun(context.WithoutCancel(s.base), orch.Project(), err); ferr != nil {
			s.logger.Error("finish run", zap.String("project", orch.Project()), zap.Error(ferr))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"project": orch.Project()})
}

type runResponse struct {
	Project  string            `json:"project"`
	Status   harvest.RunStatus `json:"status"`
	Jobs     int               `json:"jobs"`
	Started  string            `json:"started"`
	Finished string            `json:"finished,omitempty"`
	Error    string            `json:"error,omitempty"`
	Count    int               `json:"outcome_count"`
	Progress memory.Progress   `json:"progress"`
	Pending  int               `json:"pending"`
	Outcomes []harvest.Outcome `json:"outcomes,omitempty"`
}

func toRunResponse(run memory.Run, withOutcomes bool) runResponse {
	outcomes := run.Outcomes()
	resp := runResponse{
		Project:  run.Project,
		Status:   run.Status,
		Jobs:     run.Jobs,
		Started:  run.Started.Format(harvest.TimeLayout),
		Error:    run.ErrorText,
		Count:    len(outcomes),
		Progress: run.Progress,
		Pending:  run.Progress.Pending(),
	}
	if run.Finished != nil {
		resp.Finished = run.Finished.Format(harvest.TimeLayout)
	}
	if withOutcomes {
		resp.Outcomes = outcomes
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

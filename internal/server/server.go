// Package server exposes manual dispatch and run history over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/VoxDroid/pyship/internal/history"
	"github.com/VoxDroid/pyship/internal/metrics"
	"github.com/VoxDroid/pyship/internal/release"
	"github.com/VoxDroid/pyship/internal/trigger"
	"github.com/VoxDroid/pyship/internal/workflow"
)

// ActorHeader names the caller recorded on dispatched runs.
const ActorHeader = "X-Pyship-Actor"

const defaultListLimit = 20

// Dispatcher runs one release. *release.Runner implements it.
type Dispatcher interface {
	Run(ctx context.Context, req release.Request) (*release.Result, error)
}

// Config wires a Server.
type Config struct {
	Runner  Dispatcher
	History *history.Repository
	Gate    *trigger.Gate
	// LoadWorkflow is called on every dispatch so edits to the workflow
	// file are picked up without a restart.
	LoadWorkflow func() (*workflow.Workflow, error)
	Dir          string
	Force        bool
	Log          zerolog.Logger
	// Output receives tool output from dispatched runs.
	Output io.Writer
}

// Server accepts manual dispatches and runs them one at a time.
type Server struct {
	cfg Config

	mu     sync.Mutex
	active string
	wg     sync.WaitGroup

	runCtx    context.Context
	cancelRun context.CancelFunc
}

// New returns a Server for cfg.
func New(cfg Config) *Server {
	if cfg.Gate == nil {
		cfg.Gate = trigger.NewGate()
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{cfg: cfg, runCtx: ctx, cancelRun: cancel}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.cfg.Log))

	r.Post("/dispatch", s.handleDispatch)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

// Active returns the id of the running dispatch, if any.
func (s *Server) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Wait blocks until the dispatched run, if any, has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Shutdown cancels the active run and waits for it to stop.
func (s *Server) Shutdown() {
	s.cancelRun()
	s.wg.Wait()
}

// ListenAndServe serves on addr until ctx is cancelled, then stops
// accepting requests, cancels the active run and waits for it.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.cfg.Log.Info().Str("addr", ln.Addr().String()).Msg("dispatch server listening")

	select {
	case err := <-errCh:
		s.Shutdown()
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Shutdown()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

type errorBody struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
}

type dispatchBody struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// actorFor reads the caller from ActorHeader. An empty result is recorded
// as unknown by the gate.
func actorFor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

// handleDispatch starts a run. The request body is ignored.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.active != "" {
		active := s.active
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, errorBody{Error: "a run is already active", RunID: active})
		return
	}

	wf, err := s.cfg.LoadWorkflow()
	if err != nil {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}
	if !s.cfg.Force {
		if err := release.CheckCommands(wf); err != nil {
			s.mu.Unlock()
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
			return
		}
	}

	d := s.cfg.Gate.Open(trigger.SourceHTTP, actorFor(r))
	s.active = d.ID
	s.wg.Add(1)
	s.mu.Unlock()

	go s.execute(d, wf)

	writeJSON(w, http.StatusAccepted, dispatchBody{RunID: d.ID, Status: history.StatusRunning})
}

func (s *Server) execute(d trigger.Dispatch, wf *workflow.Workflow) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.active = ""
		s.mu.Unlock()
	}()

	res, err := s.cfg.Runner.Run(s.runCtx, release.Request{
		Dispatch: d,
		Workflow: wf,
		Dir:      s.cfg.Dir,
		Force:    s.cfg.Force,
		Stdout:   s.cfg.Output,
		Stderr:   s.cfg.Output,
	})
	log := s.cfg.Log.With().Str("run", trigger.ShortID(d.ID)).Logger()
	if err != nil {
		log.Error().Err(err).Msg("dispatched run failed")
		return
	}
	log.Info().Str("status", res.Status).Msg("dispatched run finished")
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "run history is not available"})
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	runs, err := s.cfg.History.ListRuns(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "run history is not available"})
		return
	}
	run, err := s.cfg.History.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, history.ErrRunNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, history.ErrAmbiguousID) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "active": s.Active()})
}

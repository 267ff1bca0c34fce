// Package server exposes the workflow over HTTP. Runs start
// asynchronously: POST /start answers immediately with a run ID, and the
// run's progress is readable through the run and log endpoints while the
// workflow executes in the background.
package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/datamorph-ai/datamorph/internal/audit"
	"github.com/datamorph-ai/datamorph/internal/workflow"
)

// Runner executes one workflow run to a terminal state.
type Runner interface {
	Run(ctx context.Context, runID, prompt string) (*workflow.Result, error)
}

// EventReader reads a run's audit trail.
type EventReader interface {
	Events(runID string) ([]audit.Event, error)
}

// runState tracks one run from acceptance to terminal state.
type runState struct {
	RunID     string           `json:"run_id"`
	Prompt    string           `json:"prompt"`
	Status    string           `json:"status"`
	Error     string           `json:"error,omitempty"`
	Result    *workflow.Result `json:"result,omitempty"`
	StartedAt time.Time        `json:"started_at"`
}

// Server is the HTTP front end.
type Server struct {
	runner Runner
	events EventReader
	engine *gin.Engine

	mu   sync.RWMutex
	runs map[string]*runState
}

// New creates a server around a runner and the audit trail reader.
func New(runner Runner, events EventReader) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		runner: runner,
		events: events,
		engine: engine,
		runs:   make(map[string]*runState),
	}

	engine.GET("/healthz", s.handleHealth)
	engine.POST("/start", s.handleStart)
	engine.GET("/runs/:id", s.handleGetRun)
	engine.GET("/runs/:id/logs", s.handleGetLogs)

	return s
}

// Handler exposes the underlying handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks serving HTTP until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf("[server] listening on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type startRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStart accepts a prompt and launches the workflow in the
// background. The response carries only the run ID; state is polled.
func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	runID := workflow.NewRunID()
	state := &runState{
		RunID:     runID,
		Prompt:    req.Prompt,
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.runs[runID] = state
	s.mu.Unlock()

	// The run outlives the request; it gets its own context.
	go s.execute(context.Background(), runID, req.Prompt)

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": "running"})
}

func (s *Server) execute(ctx context.Context, runID, prompt string) {
	res, err := s.runner.Run(ctx, runID, prompt)

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.runs[runID]
	if state == nil {
		return
	}
	if err != nil {
		state.Status = "failed"
		state.Error = err.Error()
		log.Printf("[server] run %s failed: %v", runID, err)
		return
	}
	state.Status = string(res.Status)
	state.Result = res
}

func (s *Server) handleGetRun(c *gin.Context) {
	// Copy the state under the lock so serialization never races with
	// the background writer in execute.
	s.mu.RLock()
	state, ok := s.runs[c.Param("id")]
	var snapshot runState
	if ok {
		snapshot = *state
	}
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleGetLogs(c *gin.Context) {
	runID := c.Param("id")

	s.mu.RLock()
	_, known := s.runs[runID]
	s.mu.RUnlock()

	events, err := s.events.Events(runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !known && len(events) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "events": events})
}

// Package ui is the input collector: a localhost web form that builds a
// CheckoutRequest, starts the single sequencer worker, and streams the run's
// status back as a read-only view.
package ui

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapcart/internal/checkout"
	"snapcart/internal/config"
)

// RunnerFunc executes one validated checkout request, appending progress to
// status until a terminal entry. The ui never inspects the error beyond
// logging: the status log is the source of truth for display.
type RunnerFunc func(ctx context.Context, req *checkout.CheckoutRequest, status *checkout.StatusLog) error

type activeRun struct {
	id     string
	status *checkout.StatusLog
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *activeRun) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Server wires the form UI to the sequencer. At most one run is active at a
// time; a finished run's status stays readable until the next one starts.
type Server struct {
	cfg    *config.Config
	log    *zap.Logger
	runner RunnerFunc
	clock  checkout.Clock

	mu  sync.Mutex
	run *activeRun
}

func NewServer(cfg *config.Config, log *zap.Logger, clock checkout.Clock, runner RunnerFunc) *Server {
	if clock == nil {
		clock = checkout.SystemClock{}
	}
	return &Server{cfg: cfg, log: log, clock: clock, runner: runner}
}

// Router builds the gin engine. Split out from Listen so tests can drive the
// handlers through httptest.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleIndex)
	r.POST("/run", s.handleRun)
	r.GET("/runs/:id/status", s.handleStatus)
	r.POST("/runs/:id/cancel", s.handleCancel)

	return r
}

func (s *Server) Listen() error {
	s.log.Info("input collector listening", zap.String("addr", s.cfg.ListenAddr))
	return s.Router().Run(s.cfg.ListenAddr)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", formPage)
}

func (s *Server) handleRun(c *gin.Context) {
	req, err := requestFromForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := req.Validate(s.clock.Now()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil && !s.run.finished() {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &activeRun{
		id:     uuid.NewString(),
		status: checkout.NewStatusLog(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.run = run

	s.log.Info("starting run",
		zap.String("run_id", run.id),
		zap.Int("products", len(req.Products)),
		zap.String("payment_method", string(req.Payment.Method)))

	go func() {
		defer close(run.done)
		defer cancel()
		if err := s.runner(ctx, req, run.status); err != nil {
			s.log.Warn("run ended with failure", zap.String("run_id", run.id), zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": run.id})
}

func (s *Server) lookup(id string) *activeRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil || s.run.id != id {
		return nil
	}
	return s.run
}

func (s *Server) handleStatus(c *gin.Context) {
	run := s.lookup(c.Param("id"))
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}

	entries := run.status.Snapshot()
	resp := gin.H{
		"run_id":  run.id,
		"entries": entries,
	}
	if terminal, ok := run.status.Terminal(); ok {
		resp["terminal"] = true
		resp["state"] = terminal.State
		if terminal.Reason != "" {
			resp["reason"] = terminal.Reason
		}
	} else {
		resp["terminal"] = false
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCancel(c *gin.Context) {
	run := s.lookup(c.Param("id"))
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}

	run.cancel()
	s.log.Info("cancellation requested", zap.String("run_id", run.id))
	c.JSON(http.StatusOK, gin.H{"canceled": true})
}

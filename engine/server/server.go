package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowgate/flowgate/engine/breakpoint"
	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/pkg/logger"
)

// Server exposes suspended runs over HTTP so decisions can arrive from
// outside the process that suspended them. It reads snapshots from the
// run store and, when a runner is waiting in-process, hands decisions to
// it through the hub.
type Server struct {
	addr  string
	store *breakpoint.Store
	hub   *breakpoint.Hub
	log   logger.Logger
	http  *http.Server
}

func NewServer(addr string, store *breakpoint.Store, hub *breakpoint.Hub, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{addr: addr, store: store, hub: hub, log: log}
}

// Router builds the gin engine. Exposed separately so tests can drive it
// without binding a socket.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.loggerMiddleware())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := r.Group("/api/v0")
	{
		api.GET("/runs", s.listRuns)
		api.GET("/runs/:run_id", s.getRun)
		api.POST("/runs/:run_id/decision", s.postDecision)
	}
	return r
}

// Start serves until the context is canceled, then drains with a short
// shutdown grace period.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("decision API listening", "addr", s.addr)
		errCh <- s.http.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logger.ContextWithLogger(c.Request.Context(), s.log)
		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()
		s.log.Debug("request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// ----- Handlers -----

type runSummary struct {
	RunID      core.ID         `json:"run_id"`
	WorkflowID string          `json:"workflow_id"`
	Status     core.StatusType `json:"status"`
	PhaseIndex int             `json:"phase_index"`
	Question   string          `json:"question,omitempty"`
}

func (s *Server) listRuns(c *gin.Context) {
	snaps, err := s.store.List()
	if err != nil {
		respondProblem(c, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	out := make([]runSummary, 0, len(snaps))
	for _, snap := range snaps {
		summary := runSummary{
			RunID:      snap.RunID,
			WorkflowID: snap.WorkflowID,
			Status:     snap.Status,
			PhaseIndex: snap.PhaseIndex,
		}
		if snap.Breakpoint != nil {
			summary.Question = snap.Breakpoint.Question
		}
		out = append(out, summary)
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) getRun(c *gin.Context) {
	runID, ok := s.runID(c)
	if !ok {
		return
	}
	snap, err := s.store.Load(runID)
	if err != nil {
		if errors.Is(err, breakpoint.ErrRunNotFound) {
			respondProblem(c, http.StatusNotFound, "run_not_found", err.Error())
			return
		}
		respondProblem(c, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) postDecision(c *gin.Context) {
	runID, ok := s.runID(c)
	if !ok {
		return
	}
	var decision breakpoint.Decision
	if err := c.ShouldBindJSON(&decision); err != nil {
		respondProblem(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	snap, err := s.store.Resolve(runID, &decision)
	if err != nil {
		switch {
		case errors.Is(err, breakpoint.ErrRunNotFound):
			respondProblem(c, http.StatusNotFound, "run_not_found", err.Error())
		case strings.Contains(err.Error(), "not suspended"):
			respondProblem(c, http.StatusConflict, "run_not_suspended", err.Error())
		default:
			respondProblem(c, http.StatusBadRequest, "invalid_decision", err.Error())
		}
		return
	}
	// Delivery through the hub only matters when a runner is blocked on
	// this breakpoint in-process; a detached run picks the decision up
	// from the snapshot on resume.
	delivered := false
	if s.hub != nil {
		delivered = s.hub.Resolve(runID, &decision) == nil
	}
	c.JSON(http.StatusAccepted, gin.H{
		"run_id":    snap.RunID,
		"action":    decision.Action,
		"delivered": delivered,
	})
}

func (s *Server) runID(c *gin.Context) (core.ID, bool) {
	raw := c.Param("run_id")
	id, err := core.ParseID(raw)
	if err != nil {
		respondProblem(c, http.StatusBadRequest, "invalid_run_id", err.Error())
		return "", false
	}
	return id, true
}

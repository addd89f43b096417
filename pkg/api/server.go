// Package api exposes the evaluation service over HTTP: submit runs,
// inspect their status, and fetch judgments and progress events.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/database"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/models"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/queue"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/version"
)

// RunStore is the persistence surface the handlers use. *store.Store
// implements it.
type RunStore interface {
	CreateRun(ctx context.Context, scenarioName string, scenario, trace json.RawMessage) (*models.Run, error)
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)
	GetJudgment(ctx context.Context, runID string) (*models.Judgment, error)
	ListRunEvents(ctx context.Context, runID string, afterID int64) ([]*models.RunEvent, error)
}

// PoolReporter reports worker pool health. *queue.WorkerPool implements it.
type PoolReporter interface {
	Health() *queue.PoolHealth
}

// Server is the HTTP API server.
type Server struct {
	store  RunStore
	db     *sql.DB
	pool   PoolReporter
	engine *gin.Engine
	http   *http.Server
}

// NewServer wires the routes. The db and pool may be nil; the health
// endpoint then omits those sections.
func NewServer(store RunStore, db *sql.DB, pool PoolReporter) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{store: store, db: db, pool: pool, engine: engine}

	engine.GET("/health", s.health)
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/runs", s.createRun)
		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:id", s.getRun)
		v1.GET("/runs/:id/judgment", s.getJudgment)
		v1.GET("/runs/:id/events", s.listRunEvents)
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("api server listening", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) createRun(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.ScenarioName == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "scenario_name is required"})
		return
	}

	run, err := s.store.CreateRun(c.Request.Context(), req.ScenarioName, req.Scenario, req.Trace)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRunResponse(run))
}

func (s *Server) listRuns(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	out := make([]RunResponse, len(runs))
	for i, run := range runs {
		out[i] = toRunResponse(run)
	}
	c.JSON(http.StatusOK, RunListResponse{Runs: out, Count: len(out)})
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRunResponse(run))
}

func (s *Server) getJudgment(c *gin.Context) {
	j, err := s.store.GetJudgment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJudgmentResponse(j))
}

func (s *Server) listRunEvents(c *gin.Context) {
	afterID := int64Query(c, "after_id", 0)
	evs, err := s.store.ListRunEvents(c.Request.Context(), c.Param("id"), afterID)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	out := make([]RunEventResponse, len(evs))
	for i, ev := range evs {
		out[i] = toRunEventResponse(ev)
	}
	c.JSON(http.StatusOK, RunEventListResponse{Events: out, Count: len(out)})
}

func (s *Server) health(c *gin.Context) {
	resp := HealthResponse{Status: "healthy", Version: version.Full()}
	code := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		dbHealth, err := database.Health(ctx, s.db)
		resp.Database = dbHealth
		if err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if s.pool != nil {
		poolHealth := s.pool.Health()
		resp.Pool = poolHealth
		if !poolHealth.IsHealthy {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, resp)
}

/**
 * HTTP layer for the textscan OCR server
 *
 * Gin router exposing synchronous and asynchronous recognition, history,
 * cache administration, retention, and artifact serving.
 */

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/textscan/ocr-server/internal/artifact"
	"github.com/textscan/ocr-server/internal/config"
	"github.com/textscan/ocr-server/internal/logging"
	"github.com/textscan/ocr-server/internal/processor"
	"github.com/textscan/ocr-server/internal/queue"
	"github.com/textscan/ocr-server/internal/retention"
	"github.com/textscan/ocr-server/internal/storage"
)

// HistoryStore is the history surface the HTTP layer needs.
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]storage.HistoryEntry, error)
	Get(ctx context.Context, id string) (*storage.HistoryEntry, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// CacheStore is the cache administration surface the HTTP layer needs.
type CacheStore interface {
	Stats(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}

// Pinger reports backend liveness for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries the wired components the HTTP layer serves. Jobs and Producer
// are nil when the async queue is disabled (no Redis configured).
type Deps struct {
	Processor *processor.Processor
	History   HistoryStore
	Cache     CacheStore
	DB        Pinger
	Artifacts *artifact.Store
	Sweeper   *retention.Sweeper
	Jobs      *queue.JobStore
	Producer  *queue.Producer
}

// Server is the HTTP front of the OCR service.
type Server struct {
	cfg    *config.Config
	deps   *Deps
	router *gin.Engine
	http   *http.Server
	logger *logging.Logger
}

// NewServer builds the router and binds all routes.
func NewServer(cfg *config.Config, deps *Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: router,
		logger: logging.NewLogger("server"),
	}

	router.MaxMultipartMemory = cfg.MaxUploadSize

	api := router.Group("/api")
	{
		api.POST("/ocr", s.handleOCR)
		api.POST("/ocr/batch", s.handleOCRBatch)

		api.POST("/jobs", s.handleCreateJob)
		api.GET("/jobs/:id", s.handleGetJob)

		api.GET("/history", s.handleHistoryList)
		api.GET("/history/:id", s.handleHistoryGet)
		api.DELETE("/history/:id", s.handleHistoryDelete)
		api.DELETE("/history", s.handleHistoryClear)

		api.GET("/cache/stats", s.handleCacheStats)
		api.DELETE("/cache", s.handleCacheClear)

		api.POST("/retention/sweep", s.handleRetentionSweep)
	}

	router.GET("/uploads/:name", s.handleUploadArtifact)
	router.GET("/processed/:name", s.handleProcessedArtifact)
	router.GET("/healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.cfg.ListenAddr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}

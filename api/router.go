// Package api serves the ledger over REST: batch submission, state reads
// and batch statuses.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mezonai/simplewallet/exception"
	"github.com/mezonai/simplewallet/ledger"
	"github.com/mezonai/simplewallet/logx"
	"github.com/mezonai/simplewallet/monitoring"
	"github.com/mezonai/simplewallet/ratelimit"
)

type Server struct {
	engine     *gin.Engine
	ledger     *ledger.Ledger
	limiter    *ratelimit.RateLimiter
	listenAddr string
	httpServer *http.Server
}

// NewServer wires routes; limiter may be nil to disable submission limits
func NewServer(l *ledger.Ledger, limiter *ratelimit.RateLimiter, listenAddr string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:     gin.New(),
		ledger:     l,
		limiter:    limiter,
		listenAddr: listenAddr,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.engine.Use(Recovery())
	s.engine.Use(Logger())
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(monitoring.Handler()))

	submit := []gin.HandlerFunc{s.submitBatches}
	if s.limiter != nil {
		submit = append([]gin.HandlerFunc{RateLimit(s.limiter)}, submit...)
	}
	s.engine.POST("/batches", submit...)

	s.engine.GET("/state", s.listState)
	s.engine.GET("/state/:address", s.getState)
	s.engine.GET("/batch_statuses", s.batchStatuses)
}

// Handler exposes the engine, for httptest
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	s.httpServer = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	exception.SafeGo("api-server", func() {
		logx.Info("API", fmt.Sprintf("REST API listening on %s", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error("API", "Server stopped:", err)
		}
	})
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Package ops serves liveness, Prometheus metrics and aggregate usage stats.
package ops

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/phishguard/internal/db"
)

const shutdownGrace = 5 * time.Second

type StatsSource interface {
	GetAggregateStats(ctx context.Context, now time.Time) (db.AggregateStats, error)
}

type Server struct {
	addr    string
	router  *gin.Engine
	stats   StatsSource
	metrics http.Handler
	now     func() time.Time

	srv    *http.Server
	logger *log.Entry
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func NewServer(addr string, stats StatsSource, metrics http.Handler) *Server {
	s := &Server{
		addr:    addr,
		router:  gin.New(),
		stats:   stats,
		metrics: metrics,
		now:     time.Now,
		logger:  log.WithField("object", "OpsServer"),
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
	s.router.GET("/stats", s.getStats)
}

func (s *Server) getStats(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stats unavailable"})
		return
	}
	stats, err := s.stats.GetAggregateStats(c.Request.Context(), s.now())
	if err != nil {
		s.logger.WithField("error", err.Error()).Warn("cant load aggregate stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener synchronously so a bad address fails startup.
func (s *Server) Start(context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("error", err.Error()).Error("ops server stopped")
		}
	}()
	s.logger.WithField("addr", listener.Addr().String()).Info("ops server listening")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

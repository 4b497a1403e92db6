package livehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"giftbuyer/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server exposes the read-only admin API under /api/live.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig lists the server's dependencies. Status is required; the
// stores are optional and their endpoints answer 503 when absent.
type ServerConfig struct {
	Addr         string
	Status       StatusProvider
	Transactions TransactionReader
	Ticks        TickReader
	LogPaths     map[string]string
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Status == nil {
		return nil, errors.New("live http server requires a status provider")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	liveRouter := NewRouter(cfg.Status, cfg.Transactions, cfg.Ticks, cfg.LogPaths)
	liveRouter.Register(router.Group("/api/live"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if query := c.Request.URL.RawQuery; query != "" {
			path += "?" + query
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or listening fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

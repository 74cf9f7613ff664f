// Package httpapi is the HTTP boundary: thin request/response
// translation in front of the registry. Handlers never see
// platform-native errors, only the classified taxonomy.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"brokergate/internal/logger"
	"brokergate/internal/registry"
	"brokergate/internal/store/accounts"
)

// ServerConfig carries the boundary dependencies.
type ServerConfig struct {
	Addr         string
	Registry     *registry.Registry
	Accounts     *accounts.Store
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server hosts the /api surface.
type Server struct {
	addr   string
	router *gin.Engine
	srv    *http.Server
}

// NewServer wires the routes and returns a ready-to-run server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("http server requires a registry")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	apiRouter := NewRouter(cfg.Registry, cfg.Accounts)
	apiRouter.Register(router.Group("/api"))

	return &Server{
		addr:   cfg.Addr,
		router: router,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	logger.Infof("http server stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// Package server owns the admin HTTP surface of one member.
//
// Ownership boundary:
// - translating client requests into proxy coordinator calls
// - health and metrics endpoints
//
// It holds no object state of its own; every route is a thin adapter over
// the coordinator.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/gridctl/internal/cluster"
	"github.com/danmuck/gridctl/internal/observability"
	"github.com/danmuck/gridctl/internal/proxy"
	"github.com/danmuck/gridctl/internal/remote"
)

// Options configures the admin server for one member.
type Options struct {
	Member      cluster.Member
	Addr        string
	CorsOrigins []string
}

// Server serves the member-local admin API.
type Server struct {
	opts    Options
	proxy   *proxy.Service
	manager *remote.Manager
	router  *gin.Engine
	started time.Time
}

// New builds the router and registers all routes.
func New(opts Options, proxySvc *proxy.Service, manager *remote.Manager) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(opts.Member.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		opts:    opts,
		proxy:   proxySvc,
		manager: manager,
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is canceled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

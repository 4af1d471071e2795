// Package server wires the HTTP routes to the session registry, the MJPEG
// streamer and the input injector.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/poodlez/doom/internal/common/cnst"
	"github.com/poodlez/doom/internal/common/config"
	"github.com/poodlez/doom/internal/input"
	"github.com/poodlez/doom/internal/session"
	"github.com/poodlez/doom/internal/stream"
	"github.com/poodlez/doom/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server is the HTTP front of the session pool.
type Server struct {
	logger   *zap.Logger
	cfg      *config.DoomServerConfig
	registry *session.Registry
	streamer *stream.Streamer
	injector *input.Injector
	metrics  *metrics.Metrics
	router   *gin.Engine

	httpSrv *http.Server
}

// NewServer builds the router and registers all routes.
func NewServer(
	logger *zap.Logger,
	cfg *config.DoomServerConfig,
	registry *session.Registry,
	streamer *stream.Streamer,
	injector *input.Injector,
	m *metrics.Metrics,
) *Server {
	s := &Server{
		logger:   logger.Named("server"),
		cfg:      cfg,
		registry: registry,
		streamer: streamer,
		injector: injector,
		metrics:  m,
		router:   gin.New(),
	}

	s.router.Use(s.loggerMiddleware())
	s.router.Use(s.recoveryMiddleware())
	if m != nil {
		s.router.Use(m.Middleware())
		s.router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/", s.handleIndex)
	s.router.Static("/public", cfg.PublicDir)
	s.router.GET("/doom.mjpeg", s.handleStream)
	s.router.POST("/input", s.handleInput)
	s.router.POST("/session/close", s.handleClose)
	s.router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "not found")
	})

	return s
}

// Router exposes the gin engine, mostly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Listen binds the configured port. Bind failure is the only startup error
// that is fatal to the process, so it is surfaced here rather than from the
// serve goroutine.
func (s *Server) Listen() (net.Listener, error) {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.logger.Info("listening",
		zap.String("addr", addr),
		zap.String("framebuffer", s.cfg.Doom.Framebuffer))
	return ln, nil
}

// Serve runs the HTTP server on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.httpSrv = &http.Server{Handler: s.router}
	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and closes all sessions. Streaming
// connections are long-lived by design, so after the grace period the
// remaining ones are cut.
func (s *Server) Shutdown(ctx context.Context) error {
	s.registry.CloseAll()
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return s.httpSrv.Close()
	}
	return nil
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleIndex(c *gin.Context) {
	c.File(filepath.Join(s.cfg.PublicDir, "index.html"))
}

func (s *Server) handleStream(c *gin.Context) {
	id := sessionID(c)
	h, err := s.registry.GetOrCreate(id)
	if err != nil {
		s.logger.Warn("stream rejected",
			zap.Int("session", id),
			zap.Error(err))
		c.String(http.StatusServiceUnavailable, "no session")
		return
	}
	s.streamer.Serve(c.Request.Context(), c.Writer, h)
}

func (s *Server) handleInput(c *gin.Context) {
	// Session resolution comes first: an unusable session is 503 no matter
	// what the body holds.
	id := sessionID(c)
	h, err := s.registry.GetOrCreate(id)
	if err != nil {
		c.String(http.StatusServiceUnavailable, "no session")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cnst.MaxInputBody)
	body, err := c.GetRawData()
	if err != nil {
		c.String(http.StatusBadRequest, "payload too large")
		return
	}
	if len(body) == 0 {
		c.String(http.StatusBadRequest, "empty payload")
		return
	}

	switch err := s.injector.Inject(h, string(body)); {
	case err == nil:
		s.countInput("ok")
		c.String(http.StatusOK, "ok")
	case errors.Is(err, input.ErrRateLimited):
		s.countInput("rate_limited")
		c.String(http.StatusTooManyRequests, "slow down")
	case errors.Is(err, session.ErrSessionGone):
		s.countInput("gone")
		c.String(http.StatusServiceUnavailable, "no session")
	default:
		// unresolved token or FIFO delivery failure
		s.countInput("error")
		c.String(http.StatusInternalServerError, "input error")
	}
}

func (s *Server) countInput(status string) {
	if s.metrics != nil {
		s.metrics.Input(status)
	}
}

func (s *Server) handleClose(c *gin.Context) {
	id := sessionID(c)
	s.registry.Close(id)
	c.String(http.StatusOK, "ok")
}

// sessionID extracts the session query parameter, defaulting to 0 when
// absent or unparsable.
func sessionID(c *gin.Context) int {
	id, err := strconv.Atoi(c.Query("session"))
	if err != nil {
		return 0
	}
	return id
}

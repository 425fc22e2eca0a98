// Package server constructs and runs the SketchHub HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Tyrowin/sketchhub/internal/chat"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// debugBroadcastText is sent to every live room on each debug tick.
const debugBroadcastText = "Testing rooms"

// Server serves the WebSocket endpoint and the HTTP routes over one chat
// service.
type Server struct {
	cfg          Config
	svc          *chat.Service
	hub          *Hub
	origins      *originPolicy
	upgrader     websocket.Upgrader
	validate     *validator.Validate
	authenticate Authenticator
	log          *zap.Logger

	startOnce  sync.Once
	stopOnce   sync.Once
	stopDebug  context.CancelFunc
	debugDone  chan struct{}
	httpServer *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithAuthenticator guards the operator endpoints with auth.
func WithAuthenticator(auth Authenticator) Option {
	return func(s *Server) {
		s.authenticate = auth
	}
}

// New creates a Server for cfg over svc. Call Start (or Run) before serving.
func New(cfg Config, svc *chat.Service, log *zap.Logger, opts ...Option) *Server {
	cfg = sanitizeConfig(cfg)

	s := &Server{
		cfg:          cfg,
		svc:          svc,
		hub:          NewHub(log.Named("hub")),
		origins:      newOriginPolicy(cfg.AllowedOrigins, log),
		validate:     validator.New(),
		authenticate: allowAll,
		log:          log,
		debugDone:    make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = CreateServer(cfg.Port, s.SetupRoutes())
	return s
}

// Hub returns the server's connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Start launches the hub and, in debug mode, the periodic test broadcast.
// It does not listen; use Run or serve SetupRoutes yourself.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		go s.hub.Run()
		s.log.Info("hub started and ready to manage WebSocket connections")

		ctx, cancel := context.WithCancel(context.Background())
		s.stopDebug = cancel
		if !s.cfg.Debug {
			close(s.debugDone)
			return
		}
		go s.runDebugBroadcast(ctx)
	})
}

func (s *Server) runDebugBroadcast(ctx context.Context) {
	defer close(s.debugDone)

	ticker := time.NewTicker(s.cfg.DebugBroadcastInterval)
	defer ticker.Stop()

	s.log.Info("debug broadcast enabled", zap.Duration("interval", s.cfg.DebugBroadcastInterval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.svc.Broadcast(debugBroadcastText)
		}
	}
}

// Run starts the server, listens on the configured port and blocks until
// ctx is cancelled or the listener fails, then shuts down within
// ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	s.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown stops accepting HTTP requests, stops the debug broadcast, closes
// every WebSocket connection and waits for their pumps, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.log.Info("shutting down server")

		if httpErr := s.httpServer.Shutdown(ctx); httpErr != nil {
			s.log.Warn("HTTP server shutdown error", zap.Error(httpErr))
			err = httpErr
		}

		s.Start()
		s.stopDebug()
		<-s.debugDone

		timeout := s.cfg.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if hubErr := s.hub.Shutdown(timeout); hubErr != nil {
			err = errors.Join(err, hubErr)
		}
		s.log.Info("server shutdown completed")
	})
	return err
}

// ABOUTME: Diagnostics HTTP server for the fan engine
// ABOUTME: Serves metrics, JSON state, a websocket state stream and control endpoints
package diag

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/fan"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/load"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Controller is the engine surface the server drives
type Controller interface {
	Start() error
	Stop() error
	SetManualFrequency(hz float64) error
	SetManualVolume(v float64) error
	ResumeAutomatic()
	State() fan.State
	Err() error
	Subscribe() (<-chan load.Sample, func())
}

// Config holds server configuration
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:9717"
	Addr string

	// AllowedOrigins for CORS and websocket upgrades (default: any)
	AllowedOrigins []string

	Logger *zap.Logger
}

// Server exposes the engine over HTTP
type Server struct {
	config   Config
	ctrl     Controller
	logger   *zap.Logger
	router   chi.Router
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a diagnostics server
func New(config Config, ctrl Controller) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		config: config,
		ctrl:   ctrl,
		logger: config.Logger.Named("diag"),
		done:   make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/state", s.handleState)
	r.Get("/ws", s.handleWebSocket)
	r.Post("/start", s.handleStart)
	r.Post("/stop", s.handleStop)
	r.Post("/manual", s.handleManual)
	r.Post("/auto", s.handleAuto)
	return r
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("diagnostics server failed", zap.Error(err))
		}
	}()

	s.logger.Info("diagnostics listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown closes websocket streams and stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.done)
	})

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	s.logger.Warn("rejecting websocket origin", zap.String("origin", origin))
	return false
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

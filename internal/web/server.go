// Package web serves the render pipeline, artifact store and plan library
// over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rcliao/devplan/internal/library"
	"github.com/rcliao/devplan/internal/logging"
	"github.com/rcliao/devplan/internal/pipeline"
	"github.com/rcliao/devplan/internal/store"
)

// Settings controls the HTTP listener.
type Settings struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64
}

// Address returns host:port.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the configured base URL.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

const defaultMaxBodyBytes = 1 << 20

// Server wraps the HTTP listener and handlers.
type Server struct {
	settings Settings
	service  *pipeline.Service
	store    store.Store
	library  *library.Library
	log      *logging.Logger
	pages    *pages

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer prepares a server over the given pipeline, store and library.
func NewServer(settings Settings, svc *pipeline.Service, st store.Store, lib *library.Library, opts ...Option) *Server {
	if settings.MaxBodyBytes <= 0 {
		settings.MaxBodyBytes = defaultMaxBodyBytes
	}
	s := &Server{
		settings: settings,
		service:  svc,
		store:    st,
		library:  lib,
		log:      logging.NopLogger(),
		pages:    loadPages(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the routed handler with request-id logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /render", s.handleRender)
	mux.HandleFunc("GET /artifacts", s.handleListArtifacts)
	mux.HandleFunc("GET /artifacts/{fingerprint}", s.handleGetArtifact)
	mux.HandleFunc("DELETE /artifacts/{fingerprint}", s.handleDeleteArtifact)
	mux.HandleFunc("GET /plans", s.handleListPlans)
	mux.HandleFunc("PUT /plans/{name}", s.handlePutPlan)
	mux.HandleFunc("DELETE /plans/{name}", s.handleDeletePlan)
	mux.HandleFunc("GET /plans/{name}/document", s.handlePlanDocument)
	mux.HandleFunc("GET /plans/{name}/status", s.handlePlanStatus)
	mux.HandleFunc("GET /plans/{name}/render", s.handlePlanRender)
	mux.HandleFunc("GET /view", s.handleView)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	return s.withRequestID(mux)
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("web: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = time.Now()
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve failed", "error", err)
		}
	}()
	s.log.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(time.Since(s.startTime).Seconds())
}

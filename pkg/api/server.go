// Package api provides HTTP endpoints exposing the admin status, health and
// metrics of a volume and its storages
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/objectfs/s3backend/internal/health"
)

// Reporter is anything with an admin status, such as a volume
type Reporter interface {
	AdminStatus() map[string]any
}

// StorageReporter is a storage as seen by the admin server
type StorageReporter interface {
	Reporter
	Health() health.HealthState
}

// Server provides HTTP API endpoints for monitoring
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	config     ServerConfig
	volume     Reporter
	metrics    http.Handler
	logger     *slog.Logger

	mu       sync.RWMutex
	storages map[string]StorageReporter
}

// ServerConfig configures the API server
type ServerConfig struct {
	// Address to bind the server to (e.g., "localhost:8080")
	Address string `yaml:"address" json:"address"`

	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing
	EnableCORS bool `yaml:"enable_cors" json:"enable_cors"`

	// EnableMetrics serves the Prometheus exposition on /metrics
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:       "localhost:8080",
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  10 * time.Second,
		IdleTimeout:   60 * time.Second,
		EnableCORS:    false,
		EnableMetrics: true,
	}
}

// NewServer creates a new API server. volume and metrics may be nil.
func NewServer(config ServerConfig, volume Reporter, metrics http.Handler) *Server {
	s := &Server{
		config:   config,
		volume:   volume,
		metrics:  metrics,
		storages: make(map[string]StorageReporter),
		logger:   slog.Default().With("component", "api"),
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)

	// Status endpoints
	mux.HandleFunc("/status", s.handleVolumeStatus)
	mux.HandleFunc("/status/storages", s.handleStorages)
	mux.HandleFunc("/status/storages/", s.handleStorage)

	if config.EnableMetrics && metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	mux.HandleFunc("/info", s.handleInfo)

	// Apply middleware
	handler := s.loggingMiddleware(mux)
	if config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Register exposes a storage under name, replacing any previous one
func (s *Server) Register(name string, st StorageReporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storages[name] = st
}

// Unregister removes a storage
func (s *Server) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.storages, name)
}

// Handler returns the routed handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting API server", "address", s.config.Address)
	return s.httpServer.ListenAndServe()
}

// StartBackground starts the server in a background goroutine
func (s *Server) StartBackground() {
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error", "error", err)
		}
	}()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// overallHealth returns the worst state of the registered storages
func (s *Server) overallHealth() (health.HealthState, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	overall := health.StateHealthy
	for _, st := range s.storages {
		if state := st.Health(); state > overall {
			overall = state
		}
	}
	return overall, len(s.storages)
}

// Health endpoint handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	overall, count := s.overallHealth()
	response := map[string]interface{}{
		"status":    overall.String(),
		"timestamp": time.Now(),
		"storages":  count,
	}

	statusCode := http.StatusOK
	switch overall {
	case health.StateUnavailable:
		statusCode = http.StatusServiceUnavailable
	case health.StateDegraded, health.StateReadOnly:
		statusCode = http.StatusPartialContent
	}

	s.respondJSON(w, statusCode, response)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"alive":     true,
		"timestamp": time.Now(),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	overall, _ := s.overallHealth()
	ready := overall != health.StateUnavailable

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	s.respondJSON(w, statusCode, map[string]interface{}{
		"ready":     ready,
		"status":    overall.String(),
		"timestamp": time.Now(),
	})
}

// Status endpoint handlers

func (s *Server) handleVolumeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.volume == nil {
		s.respondError(w, http.StatusServiceUnavailable, "No volume configured")
		return
	}

	s.respondJSON(w, http.StatusOK, s.volume.AdminStatus())
}

func (s *Server) handleStorages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.mu.RLock()
	statuses := make(map[string]map[string]any, len(s.storages))
	for name, st := range s.storages {
		statuses[name] = st.AdminStatus()
	}
	s.mu.RUnlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"storages":  statuses,
		"count":     len(statuses),
		"timestamp": time.Now(),
	})
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/status/storages/")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "Storage name required")
		return
	}

	s.mu.RLock()
	st, ok := s.storages[name]
	s.mu.RUnlock()
	if !ok {
		s.respondError(w, http.StatusNotFound, "Storage not found: "+name)
		return
	}

	s.respondJSON(w, http.StatusOK, st.AdminStatus())
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	endpoints := []string{
		"/health",
		"/health/live",
		"/health/ready",
		"/status",
		"/status/storages",
		"/status/storages/{name}",
		"/info",
	}
	if s.config.EnableMetrics && s.metrics != nil {
		endpoints = append(endpoints, "/metrics")
	}

	s.mu.RLock()
	names := make([]string, 0, len(s.storages))
	for name := range s.storages {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	info := map[string]interface{}{
		"service":   "s3backend admin",
		"timestamp": time.Now(),
		"endpoints": endpoints,
		"storages":  names,
	}
	if s.volume != nil {
		if version, ok := s.volume.AdminStatus()["version"]; ok {
			info["version"] = version
		}
	}

	s.respondJSON(w, http.StatusOK, info)
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("API request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Helper methods

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Error encoding JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, map[string]interface{}{
		"error":     message,
		"timestamp": time.Now(),
	})
}

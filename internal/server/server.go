// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jeranaias/agentdesk/internal/fsapi"
	"github.com/jeranaias/agentdesk/internal/mockagent"
	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/protocol"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr matches the client's default server URL.
	DefaultAddr = "127.0.0.1:3001"

	// Version is the mock server version reported by /health.
	Version = "0.1.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Server serves the orchestrator WebSocket and the filesystem API on one
// listener.
type Server struct {
	addr   string
	router *http.ServeMux
	server *http.Server

	orch    *mockagent.Orchestrator
	ws      *mockagent.Handler
	fs      *fsapi.Local
	cors    *CORSConfig
	limiter *RateLimiter
	started time.Time

	mu sync.RWMutex
}

// NewServer creates a Server. An empty addr uses DefaultAddr.
func NewServer(addr string, orch *mockagent.Orchestrator, fs *fsapi.Local, wsOpts ...mockagent.HandlerOption) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		addr:    addr,
		router:  http.NewServeMux(),
		orch:    orch,
		ws:      mockagent.NewHandler(orch, wsOpts...),
		fs:      fs,
		cors:    DefaultCORSConfig(),
		limiter: DefaultRateLimiter(),
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

// WithCORS replaces the CORS configuration.
func (s *Server) WithCORS(config *CORSConfig) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cors = config
	return s
}

// WithRateLimiter replaces the per-IP limiter. Nil disables limiting.
func (s *Server) WithRateLimiter(rl *RateLimiter) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = rl
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.Handle("GET /ws", s.ws)

	if s.fs != nil {
		s.fs.Register(s.router)
	}

	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /api/agents", s.handleAgents)
	s.router.HandleFunc("GET /api/sessions", s.handleSessions)
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default()),
	}
	if s.cors != nil {
		chain = append(chain, CORSMiddleware(s.cors))
	}
	if s.limiter != nil {
		chain = append(chain, RateLimitMiddleware(s.limiter))
	}
	return Chain(chain...)(s.router)
}

// ============================================================================
// HANDLERS
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Clients       int    `json:"clients"`
	Sessions      int    `json:"sessions"`
	Agents        int    `json:"agents"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	enabled := 0
	for _, a := range s.orch.Agents() {
		if a.Enabled {
			enabled++
		}
	}
	health := HealthResponse{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Clients:       s.ws.Clients(),
		Sessions:      len(s.orch.Sessions()),
		Agents:        enabled,
	}
	if enabled == 0 {
		health.Status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		Agents []model.AgentInfo `json:"agents"`
	}{s.orch.Agents()})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		Sessions []protocol.SessionEntry `json:"sessions"`
	}{s.orch.Sessions()})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l and blocks until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	handler := s.Handler()
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	log.Printf("SERVER_START | addr=%s version=%s", l.Addr(), Version)
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes every WebSocket client, then stops accepting connections
// and waits for HTTP requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	log.Printf("SERVER_SHUTDOWN | clients=%d sessions=%d", s.ws.Clients(), len(s.orch.Sessions()))
	s.ws.CloseAll()
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("SERVER_WRITE_FAILED | error=%v", err)
	}
}

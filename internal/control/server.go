// internal/control/server.go
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/raidpilot/internal/messaging"
	"github.com/xkilldash9x/raidpilot/internal/status"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Constants for WebSocket timeouts and limits (based on Gorilla WebSocket examples).
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 8192
	// Send buffer size
	sendChannelSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server listens on loopback by default; the popup page connects from its own origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Config holds the control server settings.
type Config struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// Server exposes the message router over HTTP and streams status reports over a
// WebSocket, so a popup or script can drive a running agent.
type Server struct {
	cfg    Config
	router *messaging.Router
	bus    *status.Bus
	logger *zap.Logger

	shutdown chan struct{}
	once     sync.Once
}

// NewServer creates a Server. Call Run to start listening.
func NewServer(cfg Config, router *messaging.Router, bus *status.Bus, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		router:   router,
		bus:      bus,
		logger:   logger.Named("control"),
		shutdown: make(chan struct{}),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// WebSocket routes stay outside the timeout group; they are long-lived.
	r.Get("/ws/v1/status", s.handleStatusStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/healthz", s.handleHealthCheck)
		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/command", s.handleCommand)
			r.Get("/status", s.handleStatus)
		})
	})
	return r
}

// Run serves until ctx is done, then shuts down and closes open streams.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Control server listening", zap.String("address", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(ln) }()

	select {
	case err := <-errCh:
		s.Close()
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Control server shutdown error", zap.Error(err))
	}
	<-errCh
	s.logger.Info("Control server stopped")
	return nil
}

// Close ends every open status stream. Hijacked connections are not covered by
// http.Server.Shutdown.
func (s *Server) Close() {
	s.once.Do(func() { close(s.shutdown) })
}

// corsMiddleware provides basic CORS support for the popup page.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		s.respond(w, http.StatusBadRequest, messaging.Response{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	var req messaging.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.respond(w, http.StatusBadRequest, messaging.Response{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	s.logger.Info("Received command", zap.String("type", string(req.Type)))
	resp := s.router.Handle(r.Context(), req)
	code := http.StatusOK
	if !resp.Success {
		code = http.StatusBadRequest
		if resp.Status != nil {
			// Known request whose change could not be saved.
			code = http.StatusInternalServerError
		}
	}
	s.respond(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.router.Handle(r.Context(), messaging.Request{Type: messaging.KindGetStatus}))
}

func (s *Server) respond(w http.ResponseWriter, code int, resp messaging.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

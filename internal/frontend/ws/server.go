package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pokerplan/pokerplan/internal/config"
)

// SessionHandler processes one connected WebSocket session.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn *Conn) error
}

// SessionHandlerFunc adapts a function to the SessionHandler interface.
type SessionHandlerFunc func(ctx context.Context, conn *Conn) error

// HandleSession calls the underlying function.
func (f SessionHandlerFunc) HandleSession(ctx context.Context, conn *Conn) error {
	return f(ctx, conn)
}

// Server hosts the WebSocket upgrade endpoint and hands each accepted
// socket to the session handler.
type Server struct {
	cfg      config.WebSocketConfig
	handler  SessionHandler
	logger   *zap.Logger
	upgrader websocket.Upgrader
	srv      *http.Server
}

// NewServer creates a WebSocket server for the configured endpoint.
//
// Precondition: handler and logger must be non-nil.
func NewServer(cfg config.WebSocketConfig, handler SessionHandler, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Room codes are the only admission control; any origin
			// may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.serveWS)
	s.srv = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  0, // sessions are long-lived; deadlines are per-message
		WriteTimeout: 0,
	}
	return s
}

// ListenAndServe starts the HTTP listener. It blocks until Stop is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("websocket server listening",
		zap.String("addr", s.cfg.Addr()),
		zap.String("path", s.cfg.Path),
	)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("websocket shutdown", zap.Error(err))
	}
	s.logger.Info("websocket server stopped")
}

// serveWS upgrades one HTTP request and runs its session to completion.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	conn := NewConn(sock)
	defer conn.Close()

	s.logger.Info("websocket client connected",
		zap.String("remote_addr", conn.RemoteAddr()),
	)

	if err := s.handler.HandleSession(r.Context(), conn); err != nil {
		s.logger.Debug("websocket session ended",
			zap.String("remote_addr", conn.RemoteAddr()),
			zap.Error(err),
		)
	}
}

// Package main provides the planning poker server binary. It wires
// configuration, logging, the session registry, and the client transports.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/pokerplan/pokerplan/internal/config"
	"github.com/pokerplan/pokerplan/internal/frontend/handlers"
	"github.com/pokerplan/pokerplan/internal/frontend/tcp"
	"github.com/pokerplan/pokerplan/internal/frontend/ws"
	"github.com/pokerplan/pokerplan/internal/game/session"
	"github.com/pokerplan/pokerplan/internal/observability"
	"github.com/pokerplan/pokerplan/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting planning poker server",
		zap.String("tcp_addr", cfg.TCP.Addr()),
		zap.Bool("websocket_enabled", cfg.WebSocket.Enabled),
	)

	// Build services
	registry := session.NewRegistry(cfg.Session.OutboxBuffer, cfg.Session.DefaultPlayerName, logger)
	dispatcher := handlers.NewDispatcher(registry, logger)

	acceptor := tcp.NewAcceptor(cfg.TCP,
		tcp.SessionHandlerFunc(func(ctx context.Context, conn *tcp.Conn) error {
			return dispatcher.HandleSession(ctx, conn)
		}),
		logger,
	)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("tcp", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	if cfg.WebSocket.Enabled {
		wsServer := ws.NewServer(cfg.WebSocket,
			ws.SessionHandlerFunc(func(ctx context.Context, conn *ws.Conn) error {
				return dispatcher.HandleSession(ctx, conn)
			}),
			logger,
		)
		lifecycle.Add("websocket", &server.FuncService{
			StartFn: wsServer.ListenAndServe,
			StopFn:  wsServer.Stop,
		})
	}

	if cfg.Session.StatusInterval > 0 {
		stop := make(chan struct{})
		lifecycle.Add("status", &server.FuncService{
			StartFn: func() error {
				ticker := time.NewTicker(cfg.Session.StatusInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						logger.Info("server status",
							zap.Int("rooms", registry.RoomCount()),
							zap.Int("players", registry.ClientCount()),
						)
					case <-stop:
						return nil
					}
				}
			},
			StopFn: func() { close(stop) },
		})
	}

	logger.Info("server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"shipjoy/server"
	"shipjoy/server/application"
	"shipjoy/server/domain"
	"shipjoy/utils"
)

func main() {
	if err := utils.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: utils.ParseLogLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.ErrorContext(ctx, "server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	addr := utils.GetEnvDefault("ADDR", "localhost")
	port := utils.GetEnvDefault("PORT", "9090")

	cfg, err := application.LoadConfig(os.Getenv("SHIPJOY_CONFIG"))
	if err != nil {
		return err
	}
	game, err := application.NewGame(cfg)
	if err != nil {
		return err
	}

	// PubSub初期化
	pubsub := domain.NewSimplePubSub()

	// コンソールはすべて同じルームに入る
	defaultRoomID := domain.RoomID("console")
	roomManager := domain.NewSimpleRoomManager(defaultRoomID)
	console := application.NewConsoleApplication(game)
	room := domain.NewRoom(defaultRoomID, pubsub, console, domain.WithTickRate(cfg.TickRate))
	console.SetOutbox(room)

	handler := server.Route(pubsub, roomManager, console)
	s := server.NewServer(fmt.Sprintf("%s:%s", addr, port), handler)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return room.Run(ctx)
	})
	eg.Go(func() error {
		slog.InfoContext(ctx, "server listening", "addr", s.Addr())
		if err := s.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		slog.InfoContext(ctx, "shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "graceful shutdown failed", "error", err)
			if err := s.Close(); err != nil {
				slog.ErrorContext(ctx, "forced close failed", "error", err)
			}
		}
		slog.InfoContext(ctx, "server shutdown complete")
		return nil
	})
	return eg.Wait()
}

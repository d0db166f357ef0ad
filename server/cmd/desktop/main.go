package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"

	adapterebiten "shipjoy/server/adapter/ebiten"
	"shipjoy/server/application"
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
		slog.ErrorContext(ctx, "desktop stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := application.LoadConfig(os.Getenv("SHIPJOY_CONFIG"))
	if err != nil {
		return err
	}
	game, err := application.NewGame(cfg)
	if err != nil {
		return err
	}

	width := int(utils.GetEnvFloat("WINDOW_WIDTH", cfg.Arena.Width))
	height := int(utils.GetEnvFloat("WINDOW_HEIGHT", cfg.Arena.Height))

	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle("shipjoy")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.TickRate)

	slog.InfoContext(ctx, "desktop started", "width", width, "height", height, "tps", cfg.TickRate)
	if err := ebiten.RunGame(adapterebiten.NewGame(ctx, game)); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	slog.InfoContext(ctx, "desktop stopped")
	return nil
}

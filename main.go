package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/stupside/reel/cmd"
	"github.com/stupside/reel/internal/app"
)

func main() {
	level := slog.LevelInfo
	if slices.Contains(os.Args, "--debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(app.NewLogHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cmd.Root()

	if err := root.Run(ctx, os.Args); err != nil {
		if cause := context.Cause(ctx); cause != nil {
			slog.InfoContext(ctx, "shutting down", "cause", cause)
		} else {
			slog.Error("application error", "error", err)
			os.Exit(1)
		}
	}
}

// Command chat-devserver is a self-contained chat backend for local
// development: the room, history and channel endpoints the client talks to,
// plus an admin API for creating rooms and posting operator notices.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"sellerchat/internal/api"
	"sellerchat/internal/config"
	"sellerchat/internal/http"
	"sellerchat/internal/storage"
	"sellerchat/internal/stubs"
	"sellerchat/internal/ws"
)

func run(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("chat-devserver", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	noSeed := fs.Bool("no-seed", false, "do not seed demo rooms into an empty database")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs, config.ModeServer)
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	if !*noSeed {
		seeded, err := stubs.Seed(bbStorage, time.Now())
		if err != nil {
			return err
		}
		if seeded {
			logger.Info("seeded demo rooms", "member", stubs.DemoSeller.Name, "member_id", stubs.DemoSeller.MemberID)
		}
	}

	hub := ws.NewHub(bbStorage, logger)
	handlers := api.New(bbStorage, hub, cfg.Token, logger)

	apiServer := http.NewAPIServer(handlers, ws.NewServer(hub, bbStorage, logger), cfg.ServerAddr, logger)
	adminServer := http.NewAdminServer(handlers, cfg.AdminAddr, logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return adminServer.Start()
	})

	g.Go(func() error {
		return apiServer.Start()
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin server shutdown", "error", err)
		}
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("chat-devserver failed", "error", err)
		os.Exit(1)
	}
}

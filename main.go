package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"sellerchat/internal/api"
	"sellerchat/internal/chat"
	"sellerchat/internal/commands"
	"sellerchat/internal/config"
	"sellerchat/internal/directory"
	"sellerchat/internal/history"
	"sellerchat/internal/models"
	"sellerchat/internal/view"
	"sellerchat/internal/ws"
)

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := pflag.NewFlagSet("sellerchat", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	listRooms := fs.Bool("list-rooms", false, "print your conversations and exit")
	search := fs.String("search", "", "with --list-rooms, only show partners matching this")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs, config.ModeClient)
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	renderer := view.NewRenderer(view.DefaultTheme, view.DefaultWidth)

	// Without an identity nothing touches the network.
	me := cfg.Identity()
	if me.IsZero() {
		_, err := fmt.Fprintln(stdout, renderer.Alert(models.ErrNoIdentity))
		return err
	}

	client, err := api.NewClient(api.ClientConfig{
		BaseURL:    cfg.BaseURL,
		Token:      cfg.Token,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rooms := directory.New(ctx, directory.Config{
		Fetcher:  client,
		CacheTTL: cfg.RoomsCacheTTL,
		Logger:   logger,
	})

	if *listRooms {
		return commands.ListRooms(ctx, stdout, me, rooms, renderer, *search)
	}

	manager, err := chat.NewManager(chat.Config{
		Identity: me,
		BaseURL:  cfg.BaseURL,
		Dialer:   ws.NewDialer(client.AuthHeader()),
		History:  history.NewLoader(client, logger),
		Previews: rooms,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	session := commands.NewSession(commands.SessionConfig{
		Identity:   me,
		Rooms:      rooms,
		Manager:    manager,
		Renderer:   renderer,
		TimeLayout: cfg.TimeLayout,
		Out:        stdout,
		Logger:     logger,
	})

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gCtx)
	})
	g.Go(func() error {
		// Leaving the session stops the manager too.
		defer cancel()
		return session.Run(gCtx, stdin)
	})
	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("sellerchat failed", "error", err)
		os.Exit(1)
	}
}

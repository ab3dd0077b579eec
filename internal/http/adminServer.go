package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"sellerchat/internal/api"
)

// AdminServer exposes room management on a separate, normally loopback-only, address.
type AdminServer struct {
	server *http.Server
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewAdminRouter(handlers *api.API) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Post("/admin/rooms", handlers.CreateRoomHandler)
	r.Post("/admin/rooms/{token}/announce", handlers.AnnounceHandler)
	return r
}

func NewAdminServer(handlers *api.API, addr string, logger *slog.Logger) *AdminServer {
	if addr == "" {
		addr = "localhost:8081"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AdminServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewAdminRouter(handlers),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: logger,
	}
}

func (s *AdminServer) Start() error {
	s.logger.Info("Admin API started", "addr", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}

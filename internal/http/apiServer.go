package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"sellerchat/internal/api"
	"sellerchat/internal/ws"
)

const readHeaderTimeout = 10 * time.Second

type APIServer struct {
	server *http.Server
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewAPIRouter mounts the chat REST endpoints and the channel endpoint.
func NewAPIRouter(handlers *api.API, channels *ws.Server) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(handlers.RequireToken)
		r.Get("/chat/rooms/{memberId}", handlers.RoomsHandler)
		r.Get("/chat/history/{token}", handlers.HistoryHandler)
		r.Get("/ws/chat/{token}", channels.HandleConnections)
	})
	return r
}

func NewAPIServer(handlers *api.API, channels *ws.Server, addr string, logger *slog.Logger) *APIServer {
	if addr == "" {
		addr = ":8080"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &APIServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewAPIRouter(handlers, channels),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: logger,
	}
}

func (s *APIServer) Start() error {
	s.logger.Info("API server started", "addr", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}

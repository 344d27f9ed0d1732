// Package httpapi exposes the note lifecycle over HTTP. It is a thin
// boundary: request parsing, payload-size enforcement, and status-code
// mapping live here; all lifecycle decisions stay in the services package.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dvoloshins/burnnote/internal/logging"
	"github.com/dvoloshins/burnnote/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// Server hosts the public HTTP endpoint.
type Server struct {
	address     string
	notes       *services.NoteService
	logger      logging.Logger
	maxBodySize int64
}

// NewServer constructs the HTTP boundary around the lifecycle engine.
func NewServer(address string, notes *services.NoteService, logger logging.Logger, maxBodySize int64) *Server {
	return &Server{
		address:     address,
		notes:       notes,
		logger:      logger.With("module", "http_server"),
		maxBodySize: maxBodySize,
	}
}

// Router builds the chi router with all note routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.limitBody)

	r.Route("/api/notes", func(r chi.Router) {
		r.Post("/", s.createNote)
		r.Get("/{id}", s.readNote)
		r.Post("/{id}", s.readNote)
		r.Post("/{id}/read", s.confirmRead)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// limitBody caps every request body. Oversized payloads surface as
// http.MaxBytesError during decoding and map to 413.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

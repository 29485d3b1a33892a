// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/conveyor-media/conveyor/internal/config"
	"github.com/conveyor-media/conveyor/internal/logging"
	"github.com/conveyor-media/conveyor/internal/media"
	"github.com/conveyor-media/conveyor/internal/store"
	ws "github.com/conveyor-media/conveyor/internal/websocket"
)

// RecordLookup is the read-only record access the ops API needs.
type RecordLookup interface {
	Get(ctx context.Context, mediaID string) (*media.MediaRecord, error)
}

// ReadyFunc reports whether the process is ready to take traffic.
type ReadyFunc func() error

// Server is the ops HTTP server. It implements suture.Service.
type Server struct {
	config  config.ServerConfig
	records RecordLookup
	hub     *ws.Hub
	ready   ReadyFunc
	logger  zerolog.Logger

	upgrader websocket.Upgrader
}

// New builds the ops server. ready may be nil, in which case readiness
// always succeeds.
func New(cfg config.ServerConfig, records RecordLookup, hub *ws.Hub, ready ReadyFunc) *Server {
	return &Server{
		config:  cfg,
		records: records,
		hub:     hub,
		ready:   ready,
		logger:  logging.With().Str("component", "http").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Routes assembles the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.config.RateLimit, time.Minute))
		}
		r.Get("/media/{mediaID}", s.handleGetMedia)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// Serve runs the server until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.Routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("ops http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("http shutdown failed")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) String() string { return "server.Server" }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			respondError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	if mediaID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "media id is required")
		return
	}

	rec, err := s.records.Get(r.Context(), mediaID)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no record for media id")
		return
	case err != nil:
		s.logger.Error().Err(err).Str("media_id", mediaID).Msg("record lookup failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "record lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := ws.NewClient(s.hub, conn)
	s.hub.Register <- client
	client.Start()
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.Status()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

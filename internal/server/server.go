// Package server wires the HTTP routes and middleware around the pipeline.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/duet/internal/config"
	"github.com/gosuda/duet/internal/errlog"
	duetslack "github.com/gosuda/duet/internal/messenger/slack"
	"github.com/gosuda/duet/internal/orchestrator"
	"github.com/gosuda/duet/internal/server/middleware"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	pipeline   *orchestrator.Orchestrator
	cfg        *config.Config
}

// New creates a Server with all routes wired. errs and events may be nil.
func New(ctx context.Context, cfg *config.Config, pipeline *orchestrator.Orchestrator, errs *errlog.Sink, events Subscriber) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	s := &Server{
		router:   router,
		pipeline: pipeline,
		cfg:      cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// API routes on /api. The pipeline is unauthenticated by design, so the
	// per-IP rate limit is the only admission control.
	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, 5, 10))

		apiConfig := huma.DefaultConfig("Duet API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, pipeline, errs)

		// Event stream for one conversation, fed by Redis pub/sub.
		r.Get("/conversations/{conversationID}/events", conversationEvents(events))
	})

	// Slack webhook routes: real handler if configured, 501 placeholder
	// otherwise.
	router.Route("/slack", func(r chi.Router) {
		slackHandler := buildSlackHandler(cfg, pipeline)
		if slackHandler != nil {
			registerSlackRoutes(r, slackHandler)
		} else {
			r.Post("/events", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotImplemented)
			})
		}
	})

	// Liveness check (no rate limit, no body parsing).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// buildSlackHandler creates the Slack handler stack when Slack is configured.
// Returns nil if the Slack signing secret is not set.
func buildSlackHandler(cfg *config.Config, pipeline *orchestrator.Orchestrator) *duetslack.Handler {
	if cfg.Slack.SigningSecret == "" {
		return nil
	}

	slackClient := slacklib.New(cfg.Slack.BotToken)
	sender := duetslack.NewSlackMessenger(slackClient)
	handler := duetslack.NewHandler(cfg.Slack.SigningSecret, pipeline, sender)

	log.Info().Msg("Slack integration enabled")

	return handler
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

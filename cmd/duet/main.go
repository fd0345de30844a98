package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	// Register cloud storage schemes with afs.
	_ "github.com/viant/afsc/gs"
	_ "github.com/viant/afsc/s3"

	"github.com/gosuda/duet/internal/config"
	"github.com/gosuda/duet/internal/errlog"
	"github.com/gosuda/duet/internal/feedback"
	"github.com/gosuda/duet/internal/messenger/telegram"
	"github.com/gosuda/duet/internal/orchestrator"
	"github.com/gosuda/duet/internal/provider"
	"github.com/gosuda/duet/internal/provider/gemini"
	"github.com/gosuda/duet/internal/provider/openai"
	"github.com/gosuda/duet/internal/server"
	"github.com/gosuda/duet/internal/session"
	"github.com/gosuda/duet/internal/storage"
	redisstore "github.com/gosuda/duet/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Local development convenience; a missing .env file is fine.
	_ = godotenv.Load()

	// Initialize structured logging from environment.
	level, parseErr := zerolog.ParseLevel(os.Getenv("DUET_LOG_LEVEL"))
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("DUET_LOG_FORMAT") == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Error log: bounded in-memory window, optionally mirrored to SQLite.
	var durable errlog.Appender
	if cfg.ErrorLog.Path != "" {
		appender, appenderErr := errlog.NewSQLiteAppender(cfg.ErrorLog.Path)
		if appenderErr != nil {
			return appenderErr
		}
		durable = appender
	}
	errs := errlog.NewSink(cfg.ErrorLog.HistorySize, durable)
	defer func() { _ = errs.Close() }()

	// Artifact storage: cloud target with local-disk fallback.
	store := storage.NewObjectStore(cfg.Storage.BaseURL, cfg.Storage.LocalDir, errs)

	// Provider registry with both backends registered.
	registry := provider.NewRegistry()
	registry.Register("openai", openai.New)
	registry.Register("gemini", gemini.New)

	planner, err := buildProvider(registry, "openai", cfg.OpenAI, cfg)
	if err != nil {
		return err
	}
	executor, err := buildProvider(registry, "gemini", cfg.Gemini, cfg)
	if err != nil {
		return err
	}

	// Session store with background expiry.
	sessions := session.New(cfg.Session.TTL)

	// Optional Redis events. Empty addr disables publishing and the
	// conversation event stream.
	var events orchestrator.Publisher
	var subscriber server.Subscriber
	if cfg.Redis.Addr != "" {
		pubsub, redisErr := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if redisErr != nil {
			return redisErr
		}
		defer func() { _ = pubsub.Close() }()
		events = pubsub
		subscriber = pubsub
	}

	engine := feedback.NewEngine(cfg.Pipeline.MaxFeedbackCycles)

	pipeline := orchestrator.New(orchestrator.Deps{
		Planner:  planner,
		Executor: executor,
		Reviewer: executor, // the reviewer runs on the executor's backend at a higher temperature
		Engine:   engine,
		Sessions: sessions,
		Store:    store,
		Errs:     errs,
		Events:   events,
	})

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessions.StartJanitor(ctx, cfg.Session.CleanupInterval)
	startEngineJanitor(ctx, engine, cfg.Session.TTL, cfg.Session.CleanupInterval)

	// Optional Telegram bot.
	if cfg.Telegram.BotToken != "" {
		bot := telegram.NewBot(telegram.NewClient(cfg.Telegram.BotToken, ""), pipeline)
		go bot.Run(ctx)
	}

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, pipeline, errs, subscriber)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

// buildProvider creates a backend from its settings and wraps it with the
// retry decorator.
func buildProvider(registry *provider.Registry, name string, settings config.ProviderConfig, cfg *config.Config) (provider.Service, error) {
	svc, err := registry.Create(name, provider.Settings{
		APIKey:  settings.APIKey,
		Model:   settings.Model,
		BaseURL: settings.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	return provider.NewRetry(svc, cfg.Pipeline.MaxRetries, cfg.Pipeline.RetryBackoff, cfg.Pipeline.CallTimeout), nil
}

// startEngineJanitor drops stale feedback loop records on the session cleanup
// cadence.
func startEngineJanitor(ctx context.Context, engine *feedback.Engine, maxAge, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := engine.Cleanup(maxAge); n > 0 {
					log.Debug().Int("removed", n).Msg("stale feedback loops pruned")
				}
			}
		}
	}()
}

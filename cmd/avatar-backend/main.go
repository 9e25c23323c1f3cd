package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/triario/avatar-backend/internal/analyzer"
	"github.com/triario/avatar-backend/internal/anthropic"
	"github.com/triario/avatar-backend/internal/api"
	"github.com/triario/avatar-backend/internal/apollo"
	"github.com/triario/avatar-backend/internal/config"
	"github.com/triario/avatar-backend/internal/hermes"
	"github.com/triario/avatar-backend/internal/hubspot"
	"github.com/triario/avatar-backend/internal/mailer"
	"github.com/triario/avatar-backend/internal/mapping"
	"github.com/triario/avatar-backend/internal/metrics"
	"github.com/triario/avatar-backend/internal/openai"
	"github.com/triario/avatar-backend/internal/pipeline"
	"github.com/triario/avatar-backend/internal/taxonomy"
)

func main() {
	_ = godotenv.Load() // optional; production sets real env vars

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if err := run(ctx, cfg, slog.Default()); err != nil {
		slog.Error("avatar-backend failed", "error", err)
		stop()
		os.Exit(1)
	}
	stop()
}

// openStore picks the mapping backend: Postgres when DATABASE_URL is set,
// otherwise the JSON file.
var openStore = func(ctx context.Context, cfg config.Config, logger *slog.Logger) (mapping.Store, error) {
	if cfg.DatabaseURL != "" {
		store, err := mapping.OpenPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("mapping store ready", "backend", "postgres")
		return store, nil
	}
	store, err := mapping.OpenFile(cfg.MappingFile, logger)
	if err != nil {
		return nil, fmt.Errorf("open mapping file %s: %w", cfg.MappingFile, err)
	}
	logger.Info("mapping store ready", "backend", "file", "path", cfg.MappingFile)
	return store, nil
}

// run wires the service and serves until ctx is cancelled. Everything opened
// here is released before it returns, including on startup errors.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("avatar-backend starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close mapping store", "error", err)
		}
	}()

	tax, err := taxonomy.Load(cfg.TaxonomyFile)
	if err != nil {
		return fmt.Errorf("load taxonomy %s: %w", cfg.TaxonomyFile, err)
	}

	// Analyzer: OpenAI, then Anthropic, then keywords only.
	var model analyzer.Model
	switch {
	case cfg.OpenAIAPIKey != "":
		model = openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, &http.Client{Timeout: cfg.HTTPTimeout}).
			WithSchema(analyzer.SchemaName, analyzer.Schema(tax))
		logger.Info("analyzer model ready", "provider", "openai", "model", cfg.OpenAIModel)
	case cfg.AnthropicAPIKey != "":
		model = anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.HTTPTimeout)
		logger.Info("analyzer model ready", "provider", "anthropic", "model", cfg.AnthropicModel)
	default:
		logger.Warn("no model API key, using keyword analysis")
	}
	an := analyzer.New(model, tax, logger)

	// CRM
	var crm pipeline.CRM
	if cfg.HubSpotAPIKey != "" {
		crm = hubspot.NewClient(cfg.HubSpotAPIKey, cfg.HubSpotBaseURL, cfg.HTTPTimeout, logger)
		logger.Info("hubspot client ready")
	} else {
		crm = hubspot.NewSimulator(logger)
		logger.Warn("HUBSPOT_API_KEY not set, CRM writes are simulated")
	}

	// Enrichment is optional.
	var enricher pipeline.Enricher
	if cfg.ApolloAPIKey != "" {
		enricher = apollo.NewClient(cfg.ApolloAPIKey, cfg.ApolloBaseURL, cfg.HTTPTimeout, logger)
		logger.Info("apollo enrichment enabled")
	}

	var sender mailer.Sender
	if cfg.ResendAPIKey != "" {
		sender = mailer.NewResend(cfg.ResendAPIKey, cfg.FromEmail, cfg.ResendBaseURL, cfg.HTTPTimeout, logger)
		logger.Info("resend mailer ready", "from", cfg.FromEmail)
	} else {
		sender = mailer.NewLogSender(logger)
		logger.Warn("RESEND_API_KEY not set, emails are logged only")
	}

	// NATS/Hermes (optional)
	var events hermes.Publisher = hermes.Nop{}
	if cfg.NatsURL != "" {
		hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		events = hermesClient
		logger.Info("NATS connected", "url", cfg.NatsURL)
	}
	defer events.Close()

	proc := pipeline.New(pipeline.Deps{
		Store:    store,
		Analyzer: an,
		Taxonomy: tax,
		CRM:      crm,
		Enricher: enricher,
		Mailer:   sender,
		Events:   events,
		Metrics:  metrics.DefaultMetrics,
	}, pipeline.Options{
		PainProperty: cfg.HubSpotPainProperty,
		AgentName:    cfg.AgentName,
		MeetingLinks: map[string]string{
			mailer.LangES: cfg.MeetingLinkES,
			mailer.LangEN: cfg.MeetingLinkEN,
		},
	}, logger)

	// HTTP API
	srv := api.NewServer(proc, api.Options{
		Port:        cfg.Port,
		CORSOrigins: cfg.CORSOrigins,
		APIToken:    cfg.APIToken,
	}, logger)
	httpServer := &http.Server{
		Addr:              srv.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("API server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	logger.Info("avatar-backend ready",
		"analyzer", an.Mode(),
		"enrichment", enricher != nil,
		"events", cfg.NatsURL != "",
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server: %w", err)
	default:
	}
	logger.Info("avatar-backend stopped")
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

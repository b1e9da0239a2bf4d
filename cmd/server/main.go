// TasteBot - chat-driven playlist analysis and music battles
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/mzaitsev/tastebot/internal/analysis"
	"github.com/mzaitsev/tastebot/internal/api"
	"github.com/mzaitsev/tastebot/internal/bot"
	"github.com/mzaitsev/tastebot/internal/cache"
	"github.com/mzaitsev/tastebot/internal/catalog"
	"github.com/mzaitsev/tastebot/internal/chat"
	"github.com/mzaitsev/tastebot/internal/config"
	"github.com/mzaitsev/tastebot/internal/domain"
	"github.com/mzaitsev/tastebot/internal/identity"
	"github.com/mzaitsev/tastebot/internal/middleware"
	"github.com/mzaitsev/tastebot/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var resultCache cache.Cache
	if cfg.RedisAddr != "" {
		resultCache, err = cache.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		slog.Info("Redis result cache connected", "addr", cfg.RedisAddr)
	} else {
		resultCache = cache.NewMemory()
		slog.Info("Using in-process result cache")
	}
	defer func() {
		if closeErr := resultCache.Close(); closeErr != nil {
			slog.Error("Failed to close result cache", "error", closeErr)
		}
	}()

	var fetcher catalog.Fetcher
	if cfg.CatalogBaseURL != "" {
		fetcher = catalog.NewClient(cfg.CatalogBaseURL)
		slog.Info("Catalog gateway configured", "base_url", cfg.CatalogBaseURL)
	} else {
		fetcher = &catalog.StubFetcher{}
		slog.Info("No catalog gateway configured, using stub fetcher")
	}

	transcript, err := chat.NewTranscriptLogger(chat.TranscriptLogConfig{
		Enabled:       cfg.TranscriptLog.Enabled,
		Dir:           cfg.TranscriptLog.Dir,
		GlobalEnabled: cfg.TranscriptLog.GlobalEnabled,
		GlobalPath:    cfg.TranscriptLog.GlobalPath,
		QueueSize:     cfg.TranscriptLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcript.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	// Initialize services.
	hub := chat.NewHub(transcript)
	extractor := analysis.HashExtractor{}
	analyzer := analysis.NewAnalyzer(extractor)

	conversations := bot.NewConversationRegistry(logger)
	challenges := bot.NewChallengeRegistry(logger)
	boundary := bot.NewBoundary(hub, logger)
	protocol := bot.NewChallengeProtocol(conversations, challenges, repo, hub, extractor, cfg.Timeouts, logger)
	playlist := bot.NewPlaylistWorkflow(repo, resultCache, fetcher, analyzer, hub, cfg, logger)
	profile := bot.NewProfileWorkflow(repo, hub, logger)
	dispatcher := bot.NewDispatcher(conversations, boundary, playlist, protocol, profile, hub, repo, cfg.Timeouts, logger)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo)
	wsHandler := chat.NewWebSocketHandler(repo, hub, transcript, dispatcher.HandleMessage, cfg.BotToken, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// REST read surface.
	r.Get("/api/health", baseHandler.Health)
	r.Get("/api/profile", baseHandler.Profile)
	r.Get("/api/history", baseHandler.History)
	r.Get("/api/leaderboard", baseHandler.Leaderboard)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // chat connections stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	// Start background sweepers.
	conversations.StartSweeper(ctx, time.Minute, cfg.ConversationTTL)
	challenges.StartSweeper(ctx, time.Minute, cfg.ChallengeTTL, func(ch domain.Challenge) {
		protocol.NotifyExpired(context.Background(), ch)
	})
	slog.Info("Sweepers started", "conversation_ttl", cfg.ConversationTTL, "challenge_ttl", cfg.ChallengeTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

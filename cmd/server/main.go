package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kaiwa-chat/kaiwa/internal/config"
	"github.com/kaiwa-chat/kaiwa/internal/database"
	postgresrepo "github.com/kaiwa-chat/kaiwa/internal/repository/postgres"
	redisrepo "github.com/kaiwa-chat/kaiwa/internal/repository/redis"
	"github.com/kaiwa-chat/kaiwa/internal/service"
	"github.com/kaiwa-chat/kaiwa/internal/translate"
	"github.com/kaiwa-chat/kaiwa/internal/transport/http/handlers"
	"github.com/kaiwa-chat/kaiwa/internal/transport/http/middleware"
	"github.com/kaiwa-chat/kaiwa/internal/transport/ws"
)

func main() {
	cfg := config.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if !cfg.IsProduction() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Presence store; optional in development
	presence, err := redisrepo.NewPresenceStore(ctx, cfg.RedisURL)
	if err != nil {
		if cfg.IsProduction() {
			logger.Fatal().Err(err).Msg("connecting to redis")
		}
		logger.Warn().Err(err).Msg("redis unavailable, presence tracking disabled")
		presence = nil
	} else {
		defer presence.Close()
	}

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	conversationRepo := postgresrepo.NewConversationRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)

	// Translation backend
	translator := translate.NewGeminiTranslator(cfg.GeminiAPIKey, cfg.GeminiAPIURL, cfg.TranslateTimeout, logger)

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)
	conversationService := service.NewConversationService(conversationRepo, userRepo)
	messageService := service.NewMessageService(messageRepo, conversationRepo, logger)

	// WebSocket hub = the change feed
	var tracker ws.PresenceTracker
	if presence != nil {
		tracker = presence
		messageService.SetPresence(presence)
	}
	hub := ws.NewHub(tracker, logger)
	messageService.SetNotifier(ws.NewHubNotifier(hub))

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, logger)
	conversationHandler := handlers.NewConversationHandler(conversationService, logger)
	messageHandler := handlers.NewMessageHandler(messageService, logger)
	translateHandler := handlers.NewTranslateHandler(translator, logger)

	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, cfg.JWTSecret))

	// Protected - Profile
	mux.Handle("GET /api/v1/me", auth(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PATCH /api/v1/me/language", auth(http.HandlerFunc(authHandler.UpdateLanguage)))

	// Protected - Conversations
	mux.Handle("POST /api/v1/conversations", auth(http.HandlerFunc(conversationHandler.Create)))
	mux.Handle("GET /api/v1/conversations", auth(http.HandlerFunc(conversationHandler.List)))
	mux.Handle("GET /api/v1/conversations/{id}", auth(http.HandlerFunc(conversationHandler.Get)))
	mux.Handle("GET /api/v1/conversations/{id}/members", auth(http.HandlerFunc(conversationHandler.ListMembers)))
	mux.Handle("GET /api/v1/conversations/{id}/languages", auth(http.HandlerFunc(conversationHandler.Languages)))
	mux.Handle("POST /api/v1/conversations/{id}/read", auth(http.HandlerFunc(conversationHandler.MarkRead)))

	// Protected - Messages
	mux.Handle("POST /api/v1/conversations/{id}/messages", auth(http.HandlerFunc(messageHandler.Send)))
	mux.Handle("GET /api/v1/conversations/{id}/messages", auth(http.HandlerFunc(messageHandler.List)))
	mux.Handle("PATCH /api/v1/messages/{id}/translations", auth(http.HandlerFunc(messageHandler.MergeTranslations)))
	mux.Handle("DELETE /api/v1/messages/{id}", auth(http.HandlerFunc(messageHandler.Unsend)))

	// Protected - Translation proxy
	mux.Handle("POST /api/v1/translate", auth(http.HandlerFunc(translateHandler.Translate)))

	handler := middleware.CORS(middleware.Logger(logger)(mux))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := hub.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

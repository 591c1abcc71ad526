package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/privchat/chat-server-go/internal/config"
	"github.com/privchat/chat-server-go/internal/handler"
	"github.com/privchat/chat-server-go/internal/jobs"
	"github.com/privchat/chat-server-go/internal/middleware"
	"github.com/privchat/chat-server-go/internal/redis"
	"github.com/privchat/chat-server-go/internal/relay"
	"github.com/privchat/chat-server-go/internal/repository"
	"github.com/privchat/chat-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("APP_ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	roomRepo := repository.NewRoomRepository(redisClient)
	messageRepo := repository.NewMessageRepository(redisClient)

	broker := relay.NewBroker(redisClient)
	defer broker.Close()

	roomService := service.NewRoomService(roomRepo, broker, cfg.RoomTTL())
	messageService := service.NewMessageService(roomRepo, messageRepo, broker)

	membershipMiddleware := middleware.NewMembershipMiddleware(roomService)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	roomsHandler := handler.NewRoomsHandler(roomService, cfg.CookieSecure)
	messagesHandler := handler.NewMessagesHandler(messageService)
	eventsHandler := handler.NewEventsHandler(broker)
	wsHandler := handler.NewWebSocketHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

		r.Post("/room", roomsHandler.Create)
		r.Get("/room/{roomID}", roomsHandler.Join)

		r.Group(func(r chi.Router) {
			r.Use(membershipMiddleware.Handler)

			r.Get("/room/ttl", roomsHandler.TTL)
			r.Delete("/room", roomsHandler.Destroy)
			r.Post("/messages", messagesHandler.Post)
			r.Get("/messages", messagesHandler.List)
		})
	})

	// Streaming endpoints live outside the request timeout; the relay
	// connection is expected to last as long as the room does.
	r.Group(func(r chi.Router) {
		r.Use(membershipMiddleware.Handler)

		r.Get("/events", eventsHandler.ServeHTTP)
		r.Get("/ws", wsHandler.ServeHTTP)
	})

	sweeperJob := jobs.NewSweeperJob(redisClient, config.SweeperJobInterval)
	sweeperJob.Start()
	defer sweeperJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/account-service/internal/api"
	"github.com/isdelr/account-service/internal/auth"
	"github.com/isdelr/account-service/internal/config"
	"github.com/isdelr/account-service/internal/database"
	"github.com/isdelr/account-service/internal/jobs"
	"github.com/isdelr/account-service/internal/logger"
	"github.com/isdelr/account-service/internal/ratelimit"
	"github.com/isdelr/account-service/internal/services"
	"github.com/isdelr/account-service/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type stores struct {
	users  services.UserDirectory
	events services.EventStore
	close  func(context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := database.EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &stores{
			users:  database.NewMongoUserStore(db),
			events: database.NewMongoEventStore(db),
			close:  client.Disconnect,
		}, nil
	default:
		db, err := database.New(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply database migrations: %w", err)
		}
		return &stores{
			users:  database.NewUserStore(db),
			events: database.NewEventStore(db),
			close:  func(context.Context) error { return db.Close() },
		}, nil
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Set up the user directory
	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	st, err := openStores(startCtx, cfg)
	cancelStart()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to initialize store")
	}

	// Set up WebSocket Hub for the admin event feed
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(st.events, hub)
	accountService := services.NewAccountService(
		st.users,
		auth.NewHasher(cfg.BcryptCost),
		auth.NewTokenIssuer(cfg.UserTokenSecret, cfg.AdminTokenSecret, cfg.TokenTTL),
		eventService,
	)

	var limiter *ratelimit.Limiter
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = ratelimit.New(rdb)
		log.Info().Str("addr", cfg.RedisAddr).Int("limit", cfg.AuthRateLimit).Dur("window", cfg.AuthRateWindow).
			Msg("Rate limiting enabled for /register and /login")
	}

	// Set up and run the background housekeeping
	housekeeper, err := jobs.NewHousekeeper(cfg.HousekeepingCron, cfg.EventRetention, eventService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule housekeeping")
	}
	housekeeper.Start()

	// Set up router
	router := api.NewRouter(api.Deps{
		Accounts:       accountService,
		Events:         eventService,
		Hub:            hub,
		Limiter:        limiter,
		AuthRateLimit:  cfg.AuthRateLimit,
		AuthRateWindow: cfg.AuthRateWindow,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("driver", cfg.StoreDriver).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	housekeeper.Stop()
	hub.Stop()
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	if err := st.close(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}

	log.Info().Msg("Server exiting")
}

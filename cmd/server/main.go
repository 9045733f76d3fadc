package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kosarica/store-service/config"
	_ "github.com/kosarica/store-service/docs"
	"github.com/kosarica/store-service/internal/database"
	"github.com/kosarica/store-service/internal/handlers"
	"github.com/kosarica/store-service/internal/middleware"
	"github.com/kosarica/store-service/internal/preferences"
	"github.com/kosarica/store-service/internal/telemetry"
)

// @title Store Service API
// @version 1.0
// @description Internal API for store ranking, opening-hours status and shopper preferences.
// @BasePath /internal
// @securityDefinitions.apikey InternalAPIKey
// @in header
// @name X-Internal-API-Key
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting store service")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.GetConfigFromEnv())
	if err != nil {
		logger.Warn().Err(err).Msg("Telemetry disabled")
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	loc, err := cfg.Hours.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid hours timezone")
	}

	storeCfg := handlers.StoreConfig{Ranking: cfg.Ranking, Location: loc}
	if dbURL := config.GetDatabaseURL(); dbURL != "" {
		if err := database.Connect(ctx, dbURL, database.PoolConfig{
			MaxConns:        cfg.Database.MaxConnections,
			MinConns:        cfg.Database.MinConnections,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		}); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()
		logger.Info().Msg("Database connected")

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, database.Pool()); err != nil {
				logger.Fatal().Err(err).Msg("Failed to migrate database")
			}
			logger.Info().Msg("Database schema applied")
		}
		handlers.InitStores(database.NewStoreRepository(database.Pool()), storeCfg)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, product store lookups disabled")
		handlers.InitStores(nil, storeCfg)
	}

	prefs, closePrefs := initPreferences(cfg, logger)
	defer closePrefs()
	handlers.InitPreferences(prefs, cfg.Preferences.MaxRecentSearches)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(*logger))
	router.Use(gin.Recovery())

	handlers.RegisterRoutes(router,
		middleware.InternalAuthMiddleware(cfg.Server.InternalAPIKey),
		middleware.ServiceRateLimitMiddleware(cfg.RateLimit.Service),
		middleware.RateLimitMiddleware(ctx, cfg.RateLimit.Client),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to flush telemetry")
	}

	logger.Info().Msg("Server exited")
}

// initPreferences picks the Redis store when redis.url is set and the
// in-memory store otherwise.
func initPreferences(cfg *config.Config, logger *zerolog.Logger) (preferences.Store, func()) {
	if cfg.Redis.URL == "" {
		logger.Warn().Msg("REDIS_URL not set, preferences kept in memory")
		return preferences.NewMemoryStore(), func() {}
	}

	client, err := preferences.NewRedisClient(cfg.Redis.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid redis URL")
	}
	redisStore := preferences.NewRedisStore(client, cfg.Preferences.TTL)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisStore.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Msg("Redis not reachable yet")
	} else {
		logger.Info().Msg("Redis connected")
	}

	breaker := preferences.NewCircuitBreaker(cfg.Preferences.Breaker,
		logger.With().Str("component", "preferences").Logger())
	return preferences.NewGuardedStore(redisStore, breaker), func() {
		if err := redisStore.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "store-service").Logger()
	return &logger
}

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

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/bi-assistant/internal/api"
	"github.com/Rrens/bi-assistant/internal/cache"
	"github.com/Rrens/bi-assistant/internal/config"
	"github.com/Rrens/bi-assistant/internal/domain"
	"github.com/Rrens/bi-assistant/internal/logger"
	"github.com/Rrens/bi-assistant/internal/planner"
	"github.com/Rrens/bi-assistant/internal/repository/mongo"
	"github.com/Rrens/bi-assistant/internal/repository/postgres"
	"github.com/Rrens/bi-assistant/internal/repository/redis"
	"github.com/Rrens/bi-assistant/internal/repository/sqldb"
	"github.com/Rrens/bi-assistant/internal/security"
	"github.com/Rrens/bi-assistant/internal/service"
	"github.com/Rrens/bi-assistant/internal/session"
	"github.com/Rrens/bi-assistant/internal/sweeper"
)

// archivePurgeInterval is how often SQL archives drop snapshots past retention
const archivePurgeInterval = time.Hour

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logCloser, err := logger.Setup(cfg.Logging, os.Getenv("ENV") == "production")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("archive", cfg.Archive.Backend).
		Msg("Starting BI assistant server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	// Cache and session engine
	resultCache, err := cache.New[domain.QueryResult](cfg.Cache.Capacity, cfg.Cache.DefaultTTL, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create result cache")
	}
	tracker, err := cache.NewStatsTracker(cfg.Cache.MaxSnapshots, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stats tracker")
	}
	registry, err := session.NewRegistry(cfg.Session.MaxHistory, cfg.Session.IdleTimeout, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session registry")
	}

	// Initialize Redis
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	// Session archive
	archive, err := openArchive(ctx, cfg, redisClient, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session archive")
	}
	if archive != nil {
		defer archive.Close()
	}

	// Background housekeeping
	sw := sweeper.New(resultCache, registry, tracker, cfg.Cache.SweepInterval, cfg.Cache.SnapshotInterval, clock)
	if purger, ok := archive.(sweeper.ArchivePurger); ok {
		sw.WithArchivePurge(purger, cfg.Archive.Retention, archivePurgeInterval)
	}
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sw.Run(ctx)
	}()

	// Service and router
	plannerClient := planner.NewClient(cfg.Planner.URL, cfg.Planner.Timeout)
	if !plannerClient.IsConfigured() {
		log.Warn().Msg("planner.url is empty, cache misses will fail")
	}

	chatService := service.NewChatService(resultCache, tracker, registry, plannerClient, archive)

	routerCfg := api.RouterConfig{
		JWTManager:     security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.WriteTimeout,
	}
	if redisClient != nil {
		routerCfg.RateLimiter = redis.NewRateLimiter(
			redisClient,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
			clock,
		)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(routerCfg, chatService),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-sweeperDone

	log.Info().
		Str("summary", tracker.PerformanceSummary()).
		Msg("Server stopped")
}

// openArchive connects the configured backend; it returns nil when archiving
// is disabled.
func openArchive(ctx context.Context, cfg *config.Config, redisClient *redis.Client, clock clockwork.Clock) (domain.SessionArchive, error) {
	switch cfg.Archive.Backend {
	case config.ArchivePostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return postgres.NewSessionArchive(db), nil

	case config.ArchiveSQLite:
		return sqldb.Open(ctx, sqldb.SQLite, sqldb.SQLiteDSN(cfg.SQLite.Path), clock)

	case config.ArchiveMySQL:
		dsn := sqldb.MySQLDSN(cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.User, cfg.MySQL.Password, cfg.MySQL.Database, cfg.MySQL.TLS)
		return sqldb.Open(ctx, sqldb.MySQL, dsn, clock)

	case config.ArchiveMongo:
		return mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout, cfg.Archive.Retention, clock)

	case config.ArchiveRedis:
		encryptor, err := security.NewEncryptorFromSecret(cfg.Security.EncryptionSecret)
		if err != nil {
			return nil, err
		}
		return redis.NewSessionArchive(redisClient, encryptor, cfg.Archive.Retention), nil

	default:
		return nil, nil
	}
}

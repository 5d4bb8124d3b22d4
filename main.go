package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/callgraph-labs/cdr-engine/pkg/auth"
	"github.com/callgraph-labs/cdr-engine/pkg/config"
	"github.com/callgraph-labs/cdr-engine/pkg/database"
	"github.com/callgraph-labs/cdr-engine/pkg/handlers"
	"github.com/callgraph-labs/cdr-engine/pkg/logging"
	"github.com/callgraph-labs/cdr-engine/pkg/middleware"
	"github.com/callgraph-labs/cdr-engine/pkg/repositories"
	"github.com/callgraph-labs/cdr-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	ctx := context.Background()

	if err := database.RunMigrations(cfg.Database.ConnectionString(), cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             cfg.Database.ConnectionString(),
		MaxConnections:  cfg.Database.MaxConnections,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.Database.ConnMaxIdleMinutes) * time.Minute,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	sessionRepo := repositories.NewSessionRepository(db)
	recordRepo := repositories.NewCDRRecordRepository(db)

	sessionService := services.NewSessionService(
		sessionRepo,
		time.Duration(cfg.Ingest.SessionCacheTTLSeconds)*time.Second,
		cfg.Ingest.SessionCacheSize,
		logger,
	)
	cdrService := services.NewCDRService(sessionRepo, recordRepo, cfg.Ingest.InvalidBNumbers, logger)

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	gate := auth.NewGate(cfg.Auth.APIKey, jwksClient, logger)

	api := http.NewServeMux()
	handlers.NewCDRHandler(cdrService, sessionService, logger).RegisterRoutes(api)
	handlers.NewSessionHandler(sessionService, logger).RegisterRoutes(api)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	mux.Handle("/api/", gate.Middleware(api))

	handler := middleware.RequestLogger(logger)(mux)

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	logger.Info("starting cdr-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

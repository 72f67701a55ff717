package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/wareflow/packtrack/config"
	"github.com/wareflow/packtrack/internal/repositories/component"
	"github.com/wareflow/packtrack/internal/repositories/pack"
	"github.com/wareflow/packtrack/internal/repositories/pallet"
	"github.com/wareflow/packtrack/pkg/aggregate"
	"github.com/wareflow/packtrack/pkg/database"
	"github.com/wareflow/packtrack/pkg/deletion"
	"github.com/wareflow/packtrack/pkg/middleware"
	"github.com/wareflow/packtrack/pkg/repair"
	"github.com/wareflow/packtrack/pkg/resolver"
	"github.com/wareflow/packtrack/pkg/routes/health"
	"github.com/wareflow/packtrack/pkg/routes/maintenance"
	"github.com/wareflow/packtrack/pkg/routes/search"
	"github.com/wareflow/packtrack/pkg/routes/stats"
	syncroute "github.com/wareflow/packtrack/pkg/routes/sync"
	"github.com/wareflow/packtrack/pkg/syncer"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg)
	logger.WithField("version", version).Infof("Starting %s", cfg.AppName)

	sqlxDB, err := database.Connect(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer sqlxDB.Close()
	db := database.NewDatabaseInstance(sqlxDB, logger)

	driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
	if err != nil {
		logger.WithError(err).Error("Failed to create migration driver")
		os.Exit(1)
	}
	migrations := database.NewMigrationService(logger, cfg.DatabaseMigrationFolderPath)
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	componentRepo := component.New(db, logger)
	packageRepo := pack.New(db, logger)
	palletRepo := pallet.New(db, logger)

	aggregator := aggregate.New(componentRepo, packageRepo, logger)
	resolv := resolver.New(componentRepo, packageRepo, palletRepo, aggregator, logger)
	syncEngine := syncer.New(componentRepo, packageRepo, palletRepo, syncer.Options{Strict: cfg.StrictBatchMode}, logger)
	deleteEngine := deletion.New(componentRepo, packageRepo, palletRepo, cfg.ClearBatchSize, logger)
	repairEngine := repair.New(componentRepo, packageRepo, palletRepo, aggregator, repair.Options{
		BatchSize: cfg.RepairBatchSize,
		Strict:    cfg.StrictBatchMode,
	}, logger)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: strings.Split(cfg.AllowOrigins, ","),
	}))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.APIKey(logger, cfg.APIKey))

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	checker := health.NewChecker(db, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	search.NewHandler(resolv, cfg.DefaultPageSize).Register(api)
	syncroute.NewHandler(syncEngine).Register(api)
	maintenance.NewHandler(deleteEngine, repairEngine).Register(api)
	stats.NewHandler(componentRepo, packageRepo, palletRepo).Register(api)

	go func() {
		checker.SetReady(true)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.WithError(err).Info("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	checker.SetReady(false)
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Failed to shut down cleanly")
	}
}

func newLogger(cfg *config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

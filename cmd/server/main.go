package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edo9300/ygopen/internal/config"
	"github.com/edo9300/ygopen/internal/duel"
	"github.com/edo9300/ygopen/internal/repository"
	"github.com/edo9300/ygopen/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting duel observer server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// The Postgres replay store is optional; replay files on disk are
	// always available.
	var replayRepo *repository.ReplayRepository
	if cfg.Database.Enabled {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)

		replayRepo = repository.NewReplayRepository(db)
		if err := replayRepo.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate replay store", zap.Error(err))
		}
		logger.Info("replay store ready")
	}

	duelMgr := duel.NewManager(logger)
	logger.Info("duel manager initialized")

	recorder := duel.NewReplayRecorder(logger, cfg.Replay.SaveDir)
	logger.Info("replay recorder initialized",
		zap.String("save_dir", cfg.Replay.SaveDir),
		zap.Bool("auto_record", cfg.Replay.AutoRecord),
	)

	router := server.NewRouter(server.RouterConfig{
		Manager:     duelMgr,
		Recorder:    recorder,
		Replays:     replayRepo,
		AutoRecord:  cfg.Replay.AutoRecord,
		CORSOrigins: cfg.Server.HTTP.CORSOrigins,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.HTTP.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	go func() {
		logger.Info("starting feed server", zap.String("address", cfg.Server.WebSocket.Address))
		if wsErr := server.StartWebSocketServer(cfg.Server.WebSocket, duelMgr, recorder, logger); wsErr != nil && wsErr != http.ErrServerClosed {
			logger.Error("feed server error", zap.Error(wsErr))
		}
	}()

	logger.Info("duel observer initialized",
		zap.String("version", version),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.String("feed_address", cfg.Server.WebSocket.Address),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	logger.Info("duel observer stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

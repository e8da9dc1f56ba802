package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/peerflow/p2pmatch/internal/api"
	"github.com/peerflow/p2pmatch/internal/infrastructure/config"
	"github.com/peerflow/p2pmatch/internal/matching"
	"github.com/peerflow/p2pmatch/internal/matching/model"
	"github.com/peerflow/p2pmatch/internal/matching/optimization"
	"github.com/peerflow/p2pmatch/internal/matching/pattern"
	"github.com/peerflow/p2pmatch/internal/matching/repository"
	"github.com/peerflow/p2pmatch/internal/matching/stats"
	"github.com/peerflow/p2pmatch/internal/notification"
	"github.com/peerflow/p2pmatch/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.New(logLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	cfg, err := config.Load(zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	repo, err := buildRepository(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize repository", zap.Error(err))
	}

	controller := optimization.NewController(logger.Named(zapLogger, "optimization"))
	patch, err := cfg.OptimizationPatch()
	if err != nil {
		zapLogger.Fatal("invalid optimization overrides", zap.Error(err))
	}
	if _, err := controller.Update(patch); err != nil {
		zapLogger.Fatal("invalid optimization overrides", zap.Error(err))
	}

	recorder := stats.NewRecorder(cfg.MetricsCapacity)

	var sink notification.Sink
	if cfg.Kafka.Enabled {
		sink = notification.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			notification.DefaultKafkaSinkConfig(), logger.Named(zapLogger, "kafka-sink"))
	} else {
		sink = notification.NewLogSink(logger.Named(zapLogger, "log-sink"))
	}
	defer sink.Close()

	adapter := pattern.NoopAdapter{}
	engine := matching.NewEngine(repo, controller, recorder, adapter, sink,
		logger.Named(zapLogger, "engine"))
	aggregator := stats.NewAggregator(repo, recorder, adapter.Name())

	server := api.NewServer(engine, controller, recorder, aggregator,
		logger.Named(zapLogger, "api"))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The periodic sweep is scheduled here, outside the engine.
	if cfg.SweepIntervalMs > 0 {
		go runSweeper(ctx, engine, time.Duration(cfg.SweepIntervalMs)*time.Millisecond, zapLogger)
	}

	go func() {
		zapLogger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildRepository(cfg *config.Config, zapLogger *zap.Logger) (model.QueueRepository, error) {
	switch cfg.Repository.Backend {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.Repository.PostgresDSN), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		if err := repository.Migrate(db); err != nil {
			return nil, err
		}
		return repository.NewGormRepository(db, cfg.Repository.RedisAddr,
			logger.Named(zapLogger, "repository")), nil
	default:
		return repository.NewMemoryRepository(), nil
	}
}

func runSweeper(ctx context.Context, engine *matching.Engine, interval time.Duration, zapLogger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pairs, err := engine.Sweep(ctx)
			if err != nil {
				zapLogger.Warn("periodic sweep failed", zap.Error(err))
				continue
			}
			if len(pairs) > 0 {
				zapLogger.Info("periodic sweep committed pairs", zap.Int("pairs", len(pairs)))
			}
		}
	}
}

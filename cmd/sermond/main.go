package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pulpitworks/sermon-engine/internal/adapter/jobqueue"
	"github.com/pulpitworks/sermon-engine/internal/adapter/repository"
	"github.com/pulpitworks/sermon-engine/internal/infrastructure/audio"
	"github.com/pulpitworks/sermon-engine/internal/infrastructure/auth"
	"github.com/pulpitworks/sermon-engine/internal/infrastructure/cache"
	"github.com/pulpitworks/sermon-engine/internal/infrastructure/database"
	"github.com/pulpitworks/sermon-engine/internal/infrastructure/storage"
	"github.com/pulpitworks/sermon-engine/internal/usecase/capture"
	"github.com/pulpitworks/sermon-engine/internal/usecase/flow"
	"github.com/pulpitworks/sermon-engine/internal/usecase/importer"
	"github.com/pulpitworks/sermon-engine/internal/usecase/upload"
	"github.com/pulpitworks/sermon-engine/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize dependencies
	log.Println("🔧 Initializing dependencies...")

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Apply schema migrations only when explicitly enabled in config.
	// Production deployments should manage schema via sql-migrate in CI/CD.
	if cfg.Database.AutoMigrate {
		if cfg.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE or manage schema with sql-migrate.")
		}
		log.Println("🔄 Applying migrations (development only) ...")
		if err := database.RunMigrations(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		log.Println("🔄 Skipping migrations; use sql-migrate for schema migrations in CI/CD/production")
	}

	// Initialize Redis
	log.Println("📦 Connecting to Redis...")
	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize object storage
	log.Println("🪣 Connecting to MinIO...")
	chunkStore, err := storage.NewMinIOClient(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	sermonRepo := repository.NewSermonRepository(db)
	resultRepo := repository.NewResultRepository(db)

	// Initialize auth session provider
	log.Println("🔐 Initializing auth session provider...")
	authProvider, err := auth.NewProvider(logger, &cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize auth provider: %v", err)
	}

	// Initialize microphone capture
	log.Println("🎙️  Initializing microphone capture...")
	pulseSource := audio.NewPulseSource(logger, cfg.Capture.Device, 0)
	captureService := capture.NewService(logger, pulseSource, capture.Options{
		BaseDir:          cfg.Capture.LocalDir,
		MinimumDuration:  cfg.Capture.MinimumDuration,
		LevelHistorySize: cfg.Capture.LevelHistorySize,
	})

	// Initialize importer, uploader and job queue client
	log.Println("📥 Initializing importer and uploader...")
	importValidator := importer.NewValidator(logger, importer.WAVProber{}, importer.Options{
		BaseDir:      cfg.Capture.LocalDir,
		MaxSizeBytes: cfg.MaxImportBytes(),
	})
	chunkUploader := upload.NewUploader(logger, chunkStore)
	queueClient := jobqueue.NewClient(logger, redisClient)

	// Initialize the flow orchestrator
	log.Println("🚀 Initializing flow orchestrator...")
	orchestrator := flow.New(logger, flow.Config{
		ChunkDuration:     cfg.Capture.ChunkDuration,
		ProcessingTimeout: cfg.Processing.Timeout,
	}, flow.Deps{
		Auth:       authProvider,
		Permission: pulseSource,
		Capture:    captureService,
		Importer:   importValidator,
		Uploader:   chunkUploader,
		Queue:      queueClient,
		Store:      sermonRepo,
		Results:    resultRepo,
	})
	defer orchestrator.Close()

	// Log every phase transition while the daemon runs.
	go func() {
		for phase := range orchestrator.Updates() {
			logger.Info("flow phase changed", zap.Stringer("phase", phase))
		}
	}()

	log.Printf("📝 Environment: %s", cfg.Environment)
	log.Println("✅ sermond ready")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")
	log.Println("✅ Stopped gracefully")
}

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"skydrive/internal/config"
	"skydrive/internal/credential"
	"skydrive/internal/jobs"
	"skydrive/internal/quota"
	"skydrive/internal/repository/postgres"
	"skydrive/internal/service"

	"github.com/joho/godotenv"

	"skydrive/internal/domain/services"
)

// application bundles the drive services behind one wiring point for the
// transport layer.
type application struct {
	Entries services.EntryService
	Shares  services.ShareService
	Uploads services.UploadService
	Bin     services.BinService
	Issuer  credential.Issuer
}

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create pgx connection pool
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Create table names
	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	entryRepo := postgres.NewEntryRepository(repoConfig)
	shareRepo := postgres.NewShareRepository(repoConfig)
	binRepo := postgres.NewBinRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Quota bookkeeping lives in the users table
	quotaService := quota.NewPostgresService(pool, tables.Users)

	// Create services
	shareService := service.NewShareService(entryRepo, shareRepo, txManager, logger)
	entryService := service.NewEntryService(entryRepo, binRepo, txManager, quotaService, logger)
	uploadService := service.NewUploadService(entryRepo, shareService, quotaService, txManager, logger)
	binService := service.NewBinService(entryRepo, binRepo, shareRepo, txManager, quotaService, cfg.BinRetention, logger)

	// Upload credential issuer is optional: without a bucket the server still
	// manages the tree, it just cannot hand out presigned slots.
	var issuer credential.Issuer
	if cfg.AWSBucket != "" {
		s3Issuer, err := credential.NewS3Issuer(ctx, credential.S3Config{
			Region:    cfg.AWSRegion,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
			Bucket:    cfg.AWSBucket,
			Endpoint:  cfg.AWSEndpoint,
			Expiry:    cfg.CredentialTTL,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to create upload credential issuer: %v", err)
		}
		issuer = s3Issuer
		logger.Info("upload credential issuer ready", "bucket", cfg.AWSBucket)
	} else {
		logger.Warn("no bucket configured, upload credentials disabled")
	}

	// app is what the transport layer (mounted separately) picks up.
	app := &application{
		Entries: entryService,
		Shares:  shareService,
		Uploads: uploadService,
		Bin:     binService,
		Issuer:  issuer,
	}

	// Start the bin expiry sweeper
	sweeper := jobs.NewSweeper(app.Bin, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = server.Shutdown(context.Background())
	}()

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}

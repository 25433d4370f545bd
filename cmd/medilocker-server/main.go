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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medilocker/medilocker/internal/config"
	"github.com/medilocker/medilocker/internal/domain/account"
	"github.com/medilocker/medilocker/internal/domain/emergency"
	"github.com/medilocker/medilocker/internal/domain/hospital"
	"github.com/medilocker/medilocker/internal/domain/patient"
	"github.com/medilocker/medilocker/internal/domain/record"
	"github.com/medilocker/medilocker/internal/domain/sharing"
	"github.com/medilocker/medilocker/internal/platform/apperror"
	"github.com/medilocker/medilocker/internal/platform/auth"
	"github.com/medilocker/medilocker/internal/platform/blobstore"
	"github.com/medilocker/medilocker/internal/platform/db"
	"github.com/medilocker/medilocker/internal/platform/email"
	"github.com/medilocker/medilocker/internal/platform/kv"
	"github.com/medilocker/medilocker/internal/platform/logging"
	"github.com/medilocker/medilocker/internal/platform/middleware"
	"github.com/medilocker/medilocker/internal/platform/notification"
	"github.com/medilocker/medilocker/internal/platform/password"
	"github.com/medilocker/medilocker/internal/platform/sms"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "medilocker-server",
		Short:        "MediLocker API Server",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(sharesCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MediLocker API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// withPool loads config, opens the database and hands both to fn.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool, dir, zerolog.Nop()).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, dir, zerolog.Nop()).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func sharesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shares",
		Short: "Maintain shared access grants",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "expire",
		Short: "Expire every share whose access window has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				svc := sharing.NewService(sharing.NewRepoPG(pool), db.PoolTxRunner{Pool: pool},
					nil, nil, nil, nil, nil, zerolog.Nop())
				n, err := svc.ExpireDue(ctx)
				if err != nil {
					return fmt.Errorf("expire shares: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Expired %d share(s).\n", n)
				return nil
			})
		},
	})
	return cmd
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.StorageDriver == "s3" {
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
	}
	return blobstore.NewMemoryStore("http://localhost:" + cfg.Port + "/files"), nil
}

func smsConfig(cfg *config.Config) sms.Config {
	return sms.Config{
		Provider:         cfg.SMSProvider,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFrom:       cfg.TwilioFrom,
		SMSIRAPIKey:      cfg.SMSIRAPIKey,
		SMSIRSecretKey:   cfg.SMSIRSecretKey,
		SMSIRTemplateID:  cfg.SMSIRTemplateID,
		Timeout:          10 * time.Second,
	}
}

func emailConfig(cfg *config.Config) email.Config {
	return email.Config{
		Enabled:  cfg.SMTPEnabled,
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		UseTLS:   cfg.SMTPUseTLS,
		Timeout:  10 * time.Second,
	}
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitWindow > 0 {
		rl.Window = cfg.RateLimitWindow
	}
	if cfg.RateLimitMax > 0 {
		rl.Max = cfg.RateLimitMax
	}
	return rl
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Logger
	logger, logCloser := logging.New(logging.Config{
		Level:      cfg.LogLevel,
		Env:        cfg.Env,
		Service:    "medilocker-server",
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")
	tx := db.PoolTxRunner{Pool: pool}

	// Redis, when configured, holds one-time tokens and rate-limit windows
	var (
		oneTime kv.TokenStore    = kv.NewMemoryTokenStore()
		counter kv.WindowCounter = kv.NewMemoryWindowCounter()
		checks                   = map[string]db.Pinger{"database": pool}
		rdb     *redis.Client
	)
	if cfg.RedisURL != "" {
		rdb, err = kv.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		oneTime = kv.NewRedisTokenStore(rdb)
		counter = kv.NewRedisWindowCounter(rdb, "ratelimit:")
		checks["redis"] = db.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		logger.Info().Msg("connected to redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set; using in-process token store and rate limiter")
	}

	// Outbound channels
	smsSender, err := sms.New(smsConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure sms provider")
	}
	if smsSender == nil {
		logger.Warn().Msg("SMS_PROVIDER not set; emergency dispatch is disabled")
	}
	notifier := notification.NewNotifier(notification.NewTemplateEngine(cfg.AppName),
		email.New(emailConfig(cfg)), smsSender, logger)

	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure file storage")
	}

	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		Issuer:        cfg.AppName,
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		AccessTTL:     cfg.JWTAccessTTL,
		RefreshTTL:    cfg.JWTRefreshTTL,
	})

	// Services
	patientSvc := patient.NewService(patient.NewRepoPG(pool), tx)
	hospitalSvc := hospital.NewService(hospital.NewRepoPG(pool))
	accountSvc := account.NewService(account.NewRepoPG(pool), tx, password.NewHasher(password.DefaultParams()),
		tokens, oneTime, notifier, patientSvc, cfg.FrontendURL, logger)
	recordSvc := record.NewService(record.NewRepoPG(pool), patientSvc, store, logger)
	emergencySvc := emergency.NewService(emergency.NewRepoPG(pool), patientSvc, hospitalSvc, notifier,
		tx, cfg.SMSDefaultRegion, logger)
	sharingSvc := sharing.NewService(sharing.NewRepoPG(pool), tx, patientSvc, hospitalSvc,
		accountSvc, recordSvc, notifier, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.Handler(logger, cfg.IsDev())

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.ReqTimeout))

	e.GET("/health", db.HealthHandler(pool, checks))
	if mem, ok := store.(*blobstore.MemoryStore); ok {
		e.GET("/files/*", mem.Serve)
	}

	// API groups
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg), counter, logger))

	account.NewHandler(accountSvc).RegisterRoutes(apiV1, tokens)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1, tokens)
	hospital.NewHandler(hospitalSvc).RegisterRoutes(apiV1, tokens)
	record.NewHandler(recordSvc).RegisterRoutes(apiV1, tokens)
	emergency.NewHandler(emergencySvc).RegisterRoutes(apiV1, tokens)
	sharing.NewHandler(sharingSvc).RegisterRoutes(apiV1, tokens)

	// Background expiry of shared access
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.ShareSweepInterval > 0 {
		go sharingSvc.RunSweeper(sweepCtx, cfg.ShareSweepInterval)
	}

	// Start server
	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting MediLocker server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

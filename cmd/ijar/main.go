package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AlsakaSoftware/ijar/config"
	"github.com/AlsakaSoftware/ijar/pkg/database"
	"github.com/AlsakaSoftware/ijar/pkg/enrich"
	"github.com/AlsakaSoftware/ijar/pkg/events"
	"github.com/AlsakaSoftware/ijar/pkg/httpclient"
	"github.com/AlsakaSoftware/ijar/pkg/kafka"
	"github.com/AlsakaSoftware/ijar/pkg/listings"
	"github.com/AlsakaSoftware/ijar/pkg/notify"
	"github.com/AlsakaSoftware/ijar/pkg/processor"
	"github.com/AlsakaSoftware/ijar/pkg/push"
	"github.com/AlsakaSoftware/ijar/pkg/ratelimit"
	"github.com/AlsakaSoftware/ijar/pkg/redis"
	"github.com/AlsakaSoftware/ijar/pkg/repositories"
	"github.com/AlsakaSoftware/ijar/pkg/runner"
	"github.com/AlsakaSoftware/ijar/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:           "ijar",
		Short:         "Property monitor for saved rental searches",
		Long:          "Runs one monitoring pass: searches the listing source for every active saved query, persists and enriches new listings, and pushes a summary notification to each user with new matches.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), userFlag)
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "run for a single user's queries only")

	cmd.AddCommand(newMigrateCommand())

	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger, flush, err := buildLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer flush()

			db, err := database.Connect(cmd.Context(), database.Config{
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			return migrate(db, cfg, logger)
		},
	}
}

func run(ctx context.Context, userFlag string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var userID *uuid.UUID
	if userFlag != "" {
		id, err := uuid.Parse(userFlag)
		if err != nil {
			return fmt.Errorf("invalid --user value %q: %w", userFlag, err)
		}
		userID = &id
	}

	logger, flush, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer flush()

	shutdownTracing := tracing.Init(cfg.AppName)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to shut down tracing")
		}
	}()

	db, err := database.Connect(ctx, database.Config{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := migrate(db, cfg, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	sourceClient := listings.NewHTTPClient(listings.HTTPClientConfig{
		BaseURL:        cfg.SourceBaseURL,
		SearchTimeout:  cfg.SourceSearchTimeout,
		DetailsTimeout: cfg.SourceDetailsTimeout,
		MaxRetries:     cfg.SourceMaxRetries,
	}, httpclient.NewClient(httpclient.DefaultConfig(), logger), logger)

	savedQueryRepo := repositories.NewSavedQueryRepository(db, logger)
	listingRepo := repositories.NewListingRepository(db, logger)
	linkRepo := repositories.NewLinkRepository(db, logger)
	deviceTokenRepo := repositories.NewDeviceTokenRepository(db, logger)

	enricher := enrich.NewEnricher(
		sourceClient,
		ratelimit.NewFixedDelay(cfg.EnrichDelay),
		enrich.Config{
			Enabled:   cfg.HDEnrichmentEnabled,
			MaxImages: cfg.MaxImagesPerListing,
		},
		logger,
	)

	queryProcessor := processor.NewQueryProcessor(
		sourceClient,
		listingRepo,
		linkRepo,
		enricher,
		processor.Config{
			PageSize:       cfg.SourcePageSize,
			MaxNewPerQuery: cfg.MaxEnrichPerQuery,
		},
		logger,
	)

	dispatcher := buildDispatcher(cfg, deviceTokenRepo, logger)
	var notifier runner.Notifier
	if dispatcher != nil {
		notifier = dispatcher
		defer dispatcher.Shutdown()
	}

	emitter := buildEmitter(cfg, logger)
	defer func() {
		if err := emitter.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close event producer")
		}
	}()

	locker, closeLocker := buildLocker(cfg, logger)
	defer closeLocker()

	r := runner.NewRunner(
		savedQueryRepo,
		queryProcessor,
		notifier,
		emitter,
		locker,
		runner.Config{
			BatchSize:  cfg.UserBatchSize,
			BatchPause: cfg.BatchPause,
			LockTTL:    cfg.RunLockTTL,
		},
		logger,
	)

	summary, err := r.Run(ctx, userID)
	if errors.Is(err, runner.ErrRunInProgress) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("monitoring run failed: %w", err)
	}

	logger.WithFields(map[string]any{
		"users":        summary.Users,
		"queries":      summary.Queries,
		"new_listings": summary.NewListings,
		"errors":       len(summary.Errors),
	}).Info("Done")

	return nil
}

func buildLogger(cfg *config.Config) (ectologger.Logger, func(), error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapConfig.Level = level
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, err
	}

	flush := func() { _ = zapLogger.Sync() }
	return zapadapter.NewZapEctoLogger(zapLogger, nil), flush, nil
}

func migrate(db database.DB, cfg *config.Config, logger ectologger.Logger) error {
	driver, err := database.MigrationDriver(db)
	if err != nil {
		return err
	}

	migrationService := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})

	return migrationService.Migrate(cfg.DatabaseName, driver)
}

// buildDispatcher returns nil when push delivery is off or misconfigured; the run still
// searches and persists, it just cannot notify.
func buildDispatcher(cfg *config.Config, tokens repositories.DeviceTokens, logger ectologger.Logger) *notify.Dispatcher {
	if !cfg.PushEnabled {
		logger.Info("Push delivery disabled")
		return nil
	}

	primary, secondary, err := push.NewAPNsPushers(push.APNsConfig{
		KeyPath: cfg.APNsKeyPath,
		KeyID:   cfg.APNsKeyID,
		TeamID:  cfg.APNsTeamID,
		Topic:   cfg.APNsTopic,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Push delivery unavailable, continuing without notifications")
		return nil
	}

	return notify.NewDispatcher(tokens, primary, secondary, logger)
}

func buildEmitter(cfg *config.Config, logger ectologger.Logger) *events.Emitter {
	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaBrokers[0] == "" {
		return nil
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)

	return events.NewEmitter(producer, logger)
}

func buildLocker(cfg *config.Config, logger ectologger.Logger) (*redis.Locker, func()) {
	noop := func() {}
	if cfg.RedisHost == "" {
		return nil, noop
	}

	client, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, continuing without run lock")
		return nil, noop
	}

	return redis.NewLocker(client, cfg.AppName), func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Redis client")
		}
	}
}

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/example/booking-manager/internal/application"
	"github.com/example/booking-manager/internal/cache"
	"github.com/example/booking-manager/internal/config"
	httptransport "github.com/example/booking-manager/internal/http"
	"github.com/example/booking-manager/internal/logging"
	"github.com/example/booking-manager/internal/notify"
	"github.com/example/booking-manager/internal/persistence"
	"github.com/example/booking-manager/internal/persistence/bridge"
	"github.com/example/booking-manager/internal/persistence/memory"
	"github.com/example/booking-manager/internal/persistence/mongo"
	"github.com/example/booking-manager/internal/persistence/postgres"
	"github.com/example/booking-manager/internal/persistence/sqlite"
	"github.com/example/booking-manager/internal/worker"
)

// bootstrapPasswordEnv carries the password of the administrator created by
// --bootstrap-admin. It is never accepted as a flag.
const bootstrapPasswordEnv = "BOOKING_BOOTSTRAP_ADMIN_PASSWORD"

type options struct {
	configFile     string
	envFile        string
	bootstrapEmail string
	bootstrapName  string
}

func parseFlags(args []string) (options, error) {
	var opts options
	flags := pflag.NewFlagSet("bookingd", pflag.ContinueOnError)
	flags.StringVar(&opts.configFile, "config", os.Getenv("BOOKING_CONFIG_FILE"), "YAML configuration file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	flags.StringVar(&opts.bootstrapEmail, "bootstrap-admin", "", "create this administrator when none exists (password from "+bootstrapPasswordEnv+")")
	flags.StringVar(&opts.bootstrapName, "bootstrap-name", "Amministratore", "display name of the bootstrap administrator")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := config.LoadEnvFile(opts.envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.LoadFile(opts.configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logging.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("bookingd stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, opts options, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	now := time.Now
	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	var auditRepo persistence.AuditRepository
	if cfg.MongoURI != "" {
		mongoAudit, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, "")
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if cerr := mongoAudit.Close(closeCtx); cerr != nil {
				logger.Error("failed to close mongo", "error", cerr)
			}
		}()
		if err := mongoAudit.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure audit indexes: %w", err)
		}
		auditRepo = mongoAudit
		logger.Info("audit trail stored in mongo", "database", cfg.MongoDatabase)
	}
	repos := bridge.New(store, auditRepo)

	if opts.bootstrapEmail != "" {
		if err := ensureAdmin(ctx, repos.Users, idGenerator, now, opts.bootstrapEmail, opts.bootstrapName, os.Getenv(bootstrapPasswordEnv), logger); err != nil {
			return err
		}
	}

	healthChecks := map[string]httptransport.HealthCheck{
		"store": func(ctx context.Context) error {
			_, err := repos.Users.ListUsers(ctx)
			return err
		},
	}

	var (
		snapshotCache application.SnapshotCache
		syncLimiter   httptransport.Limiter
		loginLimiter  httptransport.Limiter
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer client.Close()
		snapshotCache = cache.NewRedisSnapshotCache(client, cfg.SnapshotCacheTTL, logger)
		syncLimiter = cache.NewRedisLimiter(client, "sync", cfg.SyncRatePerMinute, time.Minute)
		loginLimiter = cache.NewRedisLimiter(client, "login", cfg.LoginRatePerMinute, time.Minute)
		healthChecks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	} else {
		snapshotCache = application.NewMemorySnapshotCache(cfg.SnapshotCacheTTL, 64, now)
		syncLimiter = cache.NewLocalLimiter(cfg.SyncRatePerMinute, cfg.SyncBurst, now)
		loginLimiter = cache.NewLocalLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst, now)
	}

	hub := notify.NewHub(cfg.CORSOrigins, logger)
	defer hub.Close()

	var liveSink application.NotificationSink = hub
	var consumerDone chan struct{}
	if len(cfg.KafkaBrokers) > 0 {
		sink := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer sink.Close()
		liveSink = sink

		consumer := notify.NewConsumer(cfg.KafkaBrokers, consumerGroup(cfg.KafkaGroupID), cfg.KafkaTopic, hub, logger)
		consumerDone = make(chan struct{})
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil {
				logger.Error("notification consumer stopped", "error", err)
			}
		}()
		defer func() {
			_ = consumer.Close()
			<-consumerDone
		}()
	}

	audit := application.NewAuditLog(repos.Audit, idGenerator, now, logger)
	notifications := application.NewNotificationService(repos.Notifications, now, logger)
	dispatcher := application.NewDispatcher(repos.Users, idGenerator, now,
		application.WithDispatchLogger(logger),
		application.WithSink(notifications),
		application.WithSink(liveSink),
	)
	defer dispatcher.Wait()

	bookings := application.NewBookingService(repos.Bookings, repos.Users, idGenerator, now,
		application.WithBookingNotifier(dispatcher),
		application.WithBookingAudit(audit),
		application.WithBookingLogger(logger),
		application.WithSnapshotInvalidator(snapshotCache),
		application.WithBookingLocation(cfg.Timezone),
	)
	syncService := application.NewSyncService(repos.Bookings, idGenerator, now,
		application.WithSyncCache(snapshotCache),
		application.WithSyncAudit(audit),
		application.WithSyncLogger(logger),
	)
	authService := application.NewAuthService(repos.Users, repos.Sessions, tokenGenerator, now, cfg.SessionTTL,
		application.WithSharedTokens(application.NewSharedTokenSigner(cfg.SharedTokenSecret, cfg.SharedTokenTTL, now)),
		application.WithAuthAudit(audit),
		application.WithAuthLogger(logger),
	)
	adminService := application.NewAdminService(repos.Users, audit, audit, nil, idGenerator, now, logger,
		application.WithAdminBookings(repos.Bookings),
	)
	profileService := application.NewProfileService(repos.Users, repos.Bookings, audit, audit, now, logger)
	maintenance := application.NewMaintenanceService(repos.Bookings, repos.Users, dispatcher, now, cfg.Timezone, logger)

	jobs := worker.New(logger, worker.MaintenanceJobs(worker.Schedule{
		ReminderInterval:      cfg.ReminderInterval,
		ReminderThreshold:     cfg.ReminderThreshold,
		ExpiryCheckInterval:   cfg.ExpiryCheckInterval,
		PurgeInterval:         cfg.PurgeInterval,
		NotificationRetention: cfg.NotificationRetention,
		SessionPruneInterval:  cfg.SessionPruneInterval,
	}, maintenance, notifications, authService)...)
	jobs.Start(ctx)
	defer jobs.Wait()

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:          httptransport.NewAuthHandler(authService, cfg.SharedLoginURL, logger),
		Bookings:      httptransport.NewBookingHandler(bookings, logger),
		Sync:          httptransport.NewSyncHandler(syncService, logger),
		Notifications: httptransport.NewNotificationHandler(notifications, logger),
		Admin:         httptransport.NewAdminHandler(adminService, logger),
		Profile:       httptransport.NewProfileHandler(profileService, authService, logger),
		Reports:       httptransport.NewReportHandler(bookings, repos.Users, now, cfg.Timezone, logger),
		System:        httptransport.NewSystemHandler(hub, healthChecks, logger),
		Resolver:      authService,
		SyncLimiter:   syncLimiter,
		LoginLimiter:  loginLimiter,
		CORSOrigins:   cfg.CORSOrigins,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening",
		"addr", server.Addr,
		"storage", cfg.StorageDriver,
		"redis", cfg.RedisAddr != "",
		"kafka", len(cfg.KafkaBrokers) > 0,
		"timezone", cfg.Timezone.String(),
	)
	err = server.ListenAndServe()
	// Stop the jobs and the consumer before the deferred waits run.
	cancel()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return store, nil
	case config.DriverSQLite, "":
		store, err := sqlite.Open(cfg.SQLiteDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// consumerGroup gives each instance its own group so every instance sees
// every live notification.
func consumerGroup(base string) string {
	if base == "" {
		base = "bookingd"
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = randomHex(4)
	}
	return base + "-" + host
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

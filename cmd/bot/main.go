package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/lib/pq"

	"github.com/Proton-105/trx-referral-bot/internal/admin"
	"github.com/Proton-105/trx-referral-bot/internal/bot"
	"github.com/Proton-105/trx-referral-bot/internal/database"
	"github.com/Proton-105/trx-referral-bot/internal/domain"
	apperrors "github.com/Proton-105/trx-referral-bot/internal/errors"
	"github.com/Proton-105/trx-referral-bot/internal/health"
	"github.com/Proton-105/trx-referral-bot/internal/i18n"
	"github.com/Proton-105/trx-referral-bot/internal/idempotency"
	"github.com/Proton-105/trx-referral-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/trx-referral-bot/internal/jobs/handlers"
	"github.com/Proton-105/trx-referral-bot/internal/ledger"
	"github.com/Proton-105/trx-referral-bot/internal/lifecycle"
	"github.com/Proton-105/trx-referral-bot/internal/middleware"
	"github.com/Proton-105/trx-referral-bot/internal/notify"
	"github.com/Proton-105/trx-referral-bot/internal/ratelimit"
	"github.com/Proton-105/trx-referral-bot/internal/repository"
	"github.com/Proton-105/trx-referral-bot/internal/reward"
	"github.com/Proton-105/trx-referral-bot/internal/state"
	"github.com/Proton-105/trx-referral-bot/pkg/config"
	"github.com/Proton-105/trx-referral-bot/pkg/graceful"
	"github.com/Proton-105/trx-referral-bot/pkg/logger"
	"github.com/Proton-105/trx-referral-bot/pkg/metrics"
	"github.com/Proton-105/trx-referral-bot/pkg/redis"
)

const (
	gaugesInterval     = time.Minute
	rateLimitSweep     = 5 * time.Minute
	rateLimitRetention = time.Hour
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "referral bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: sentryEnvironment(cfg),
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
	}

	log := logger.New(*cfg)
	config.WatchLogLevel(v, logger.SetLevel)

	log.Info("starting referral bot",
		slog.String("mode", cfg.Bot.Mode),
		slog.String("port", cfg.Server.Port),
		slog.Int("admins", len(cfg.AdminIDs)),
		slog.Bool("jobs", cfg.Jobs.Enabled),
	)

	policy, err := reward.NewPolicy(cfg.Rewards)
	if err != nil {
		return err
	}
	admins := admin.NewAllowList(cfg.AdminIDs)

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}

	fsys, root := database.Migrations()
	if err := database.NewMigrator(db, log).ApplyFS(ctx, fsys, root); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}

	rdb, err := openRedis(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return err
	}

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register(lifecycle.StageStores, "postgres", func(context.Context) error { return db.Close() })
	shutdown.Register(lifecycle.StageStores, "redis", func(context.Context) error { return rdb.Close() })
	if cfg.Sentry.Enabled {
		shutdown.Register(lifecycle.StageStores, "sentry", func(context.Context) error {
			sentry.Flush(2 * time.Second)
			return nil
		})
	}

	catalog, err := i18n.Load(cfg.I18n.DefaultLang)
	if err != nil {
		return runShutdown(shutdown, cfg, fmt.Errorf("load translations: %w", err))
	}

	api, err := bot.NewAPI(*cfg, log)
	if err != nil {
		return runShutdown(shutdown, cfg, err)
	}

	store := repository.NewLedgerRepository(db, log)
	fsm := state.NewStateMachine(repository.NewStateRepository(db), log, rdb.Client)
	collector := metrics.NewLedgerCollector(gaugeSource{store: store, fsm: fsm}, log)

	telegram := notify.NewTelegramSender(api, catalog.Default())
	telegram.OnBreakerChange(func(from, to apperrors.State) {
		log.Warn("telegram circuit breaker changed state", slog.String("from", from.String()), slog.String("to", to.String()))
		metrics.SetCircuitState("telegram", to)
	})

	var sender notify.Sender = telegram
	if cfg.Jobs.Enabled {
		sender, err = startJobs(cfg, telegram, collector, shutdown, log)
		if err != nil {
			return runShutdown(shutdown, cfg, err)
		}
	} else {
		go collector.Run(ctx, gaugesInterval)
	}

	svc := ledger.NewService(ledger.Options{
		Store:     store,
		FSM:       fsm,
		Policy:    policy,
		Admins:    admins,
		Notifier:  notify.New(sender, log),
		LinkFor:   cfg.Bot.ReferralLink,
		ChannelID: cfg.Bot.ChannelID,
		Log:       log,
	})

	rateLimit, err := newRateLimit(ctx, cfg, rdb, admins, log)
	if err != nil {
		return runShutdown(shutdown, cfg, err)
	}

	b := bot.New(api, bot.Options{
		Ledger:      svc,
		FSM:         fsm,
		I18n:        catalog,
		Idempotency: idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), log),
		RateLimit:   rateLimit,
		ErrHandler:  apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Log:         log,
	})

	checker := health.NewChecker(log)
	checker.AddCheck("postgres", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(rdb))
	checker.AddCheck("telegram", health.NewTelegramChecker(api))
	probes := lifecycle.NewProbes(checker, log)

	router := chi.NewRouter()
	router.Use(chimw.RealIP)
	router.Use(logger.Middleware)
	router.Use(middleware.New(log))
	router.Use(chimw.Recoverer)
	router.Get("/healthz", probes.LivenessHandler())
	router.Get("/readyz", probes.ReadinessHandler())
	router.Handle("/metrics", promhttp.Handler())
	if wh := b.WebhookHandler(); wh != nil {
		router.Post(cfg.Server.WebhookPath, wh.ServeHTTP)
	}

	srv := graceful.NewServer(log, cfg.Server, router)
	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.ListenAndServe(ctx) }()

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		b.Start()
	}()

	shutdown.Register(lifecycle.StageIntake, "telegram", func(ctx context.Context) error {
		b.Stop()
		select {
		case <-botDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case serveErr = <-serverDone:
		log.Error("http server stopped unexpectedly", slog.Any("error", serveErr))
	}
	stop()

	if serveErr == nil {
		shutdown.Register(lifecycle.StageIntake, "http", func(ctx context.Context) error {
			select {
			case err := <-serverDone:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	return runShutdown(shutdown, cfg, serveErr)
}

func runShutdown(shutdown *lifecycle.Shutdown, cfg *config.Config, cause error) error {
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := shutdown.Execute(ctx); err != nil && cause == nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return cause
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB
	err := apperrors.WithRetry(ctx, func() error {
		conn, err := database.Open(ctx, cfg)
		if err != nil {
			return apperrors.NewDatabaseError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	var client *redis.Client
	err := apperrors.WithRetry(ctx, func() error {
		c, err := redis.New(ctx, cfg)
		if err != nil {
			return apperrors.NewExternalAPIError("redis", err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// startJobs moves notification delivery and gauge refreshes onto the asynq queue.
func startJobs(cfg *config.Config, telegram notify.Sender, collector *metrics.LedgerCollector, shutdown *lifecycle.Shutdown, log *slog.Logger) (notify.Sender, error) {
	redisOpt := jobs.RedisOpt(cfg.Redis)

	worker := jobs.NewWorker(redisOpt, jobs.Queues, cfg.Jobs.Concurrency, log)
	worker.RegisterHandler(jobs.TaskTypeNotify, jobhandlers.NewNotifyHandler(telegram, log))
	worker.RegisterHandler(jobs.TaskTypeLedgerGauges, jobhandlers.NewLedgerGaugesHandler(collector, log))
	if err := worker.Start(); err != nil {
		return nil, fmt.Errorf("start jobs worker: %w", err)
	}
	shutdown.Register(lifecycle.StageWorkers, "jobs worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})

	scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs, log)
	if err := scheduler.RegisterTasks(); err != nil {
		return nil, fmt.Errorf("register scheduled tasks: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}
	shutdown.Register(lifecycle.StageWorkers, "scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})

	manager := jobs.NewManager(redisOpt, cfg.Jobs.MaxRetry, log)
	shutdown.Register(lifecycle.StageWorkers, "jobs client", func(context.Context) error { return manager.Close() })

	return manager, nil
}

// newRateLimit prefers the shared Redis counters and falls back to process memory while Redis is down.
func newRateLimit(ctx context.Context, cfg *config.Config, rdb *redis.Client, admins admin.AllowList, log *slog.Logger) (*middleware.RateLimitMiddleware, error) {
	rules, err := ratelimit.NewRules(cfg.RateLimit, admins)
	if err != nil {
		return nil, err
	}

	memory := ratelimit.NewMemoryLimiter(log)
	go memory.RunJanitor(ctx, rateLimitSweep, rateLimitRetention)
	go ratelimit.NewCleaner(rdb.Client, log, rateLimitSweep, rateLimitRetention).Run(ctx)

	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb.Client, log), memory, log)
	return middleware.NewRateLimitMiddleware(limiter, rules, log), nil
}

func sentryEnvironment(cfg *config.Config) string {
	if cfg.Sentry.Environment != "" {
		return cfg.Sentry.Environment
	}
	return cfg.AppEnv
}

// gaugeSource joins the ledger totals with the per-state user counts.
type gaugeSource struct {
	store repository.LedgerRepository
	fsm   state.StateMachine
}

func (g gaugeSource) AggregateStats(ctx context.Context) (*domain.Stats, error) {
	return g.store.AggregateStats(ctx)
}

func (g gaugeSource) CountByState(ctx context.Context) (map[state.State]int, error) {
	return g.fsm.CountByState(ctx)
}

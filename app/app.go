package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/stackmartapp/stackmart/internal/auth"
	"github.com/stackmartapp/stackmart/internal/cache"
	"github.com/stackmartapp/stackmart/internal/config"
	"github.com/stackmartapp/stackmart/internal/db"
	"github.com/stackmartapp/stackmart/internal/email"
	"github.com/stackmartapp/stackmart/internal/fulfillment"
	"github.com/stackmartapp/stackmart/internal/handlers"
	"github.com/stackmartapp/stackmart/internal/logging"
	"github.com/stackmartapp/stackmart/internal/services"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Worker        *fulfillment.Worker
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: cfg.SentrySampleRate,
			EnableTracing:    cfg.SentrySampleRate > 0,
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(startupCtx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	emailProvider, err := email.NewProvider(email.Config{
		Provider: cfg.EmailProvider,
		APIKey:   cfg.EmailAPIKey,
		From:     cfg.EmailFrom,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}
	if emailProvider != nil {
		if err := emailProvider.ValidateAPIKey(startupCtx); err != nil {
			logger.Warn("email provider key validation failed", "error", err)
		}
	}

	orderStore := db.NewOrderStore(database)
	productStore := db.NewProductStore(database)
	cartStore := db.NewCartStore(database)
	userStore := db.NewUserStore(database)
	ratingStore := db.NewRatingStore(database)

	emailSender := services.NewOrderEmailSender(emailProvider, logger.With("component", "email_sender"))
	notifier := services.NewDeliveryNotifier(orderStore, emailSender, logger.With("component", "delivery_notifier"))

	worker, err := fulfillment.New(fulfillment.Config{
		Tick:        cfg.WorkerTick,
		DeliverySLA: cfg.DeliverySLA,
		ReceiptSLA:  cfg.ReceiptSLA,
	}, orderStore, notifier, logger.With("component", "fulfillment"))
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize fulfillment worker: %w", err)
	}

	tokenIssuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	orderService := services.NewOrderService(orderStore, productStore, cartStore, worker, emailSender, logger.With("component", "order_service"))
	catalogService := services.NewCatalogService(productStore, cacheProvider, logger.With("component", "catalog_service"))
	ratingService := services.NewRatingService(ratingStore, orderStore, productStore, logger.With("component", "rating_service"))
	authService := services.NewAuthService(userStore, tokenIssuer, logger.With("component", "auth_service"))
	adminService := services.NewAdminService(orderStore, productStore, userStore, cacheProvider, logger.With("component", "admin_service"))

	h, err := handlers.New(handlers.Dependencies{
		Config:         cfg,
		DB:             database,
		CartStore:      cartStore,
		CatalogService: catalogService,
		OrderService:   orderService,
		RatingService:  ratingService,
		AuthService:    authService,
		AdminService:   adminService,
		Logger:         logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Worker:        worker,
		Handlers:      h,
	}, nil
}

// Start launches the fulfillment worker.
func (a *App) Start(ctx context.Context) error {
	return a.Worker.Start(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Worker != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.Worker.Stop(stopCtx); err != nil {
			a.Logger.Warn("failed to stop fulfillment worker", "error", err)
		}
		cancel()
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Config != nil && a.Config.SentryDSN != "" {
		sentry.Flush(2 * time.Second)
	}
}

// newLogger builds the stdout handler per LOG_FORMAT and, when Sentry is
// configured, fans records out to its slog bridge as well. Call only after
// sentry.Init.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel})
	}

	if cfg.SentryDSN != "" {
		sentryHandler := sentryslog.Option{
			EventLevel: []slog.Level{slog.LevelError},
			LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelInfo},
		}.NewSentryHandler(context.Background())
		handler = logging.MultiHandler(handler, sentryHandler)
	}
	return slog.New(handler)
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}

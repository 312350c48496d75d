// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/replygate/replygate/adapters/clock"
	apihttp "github.com/replygate/replygate/adapters/http"
	"github.com/replygate/replygate/adapters/idgen"
	"github.com/replygate/replygate/adapters/memory"
	"github.com/replygate/replygate/adapters/metrics"
	"github.com/replygate/replygate/adapters/playstore"
	redisadapter "github.com/replygate/replygate/adapters/redis"
	"github.com/replygate/replygate/adapters/sqlite"
	"github.com/replygate/replygate/app"
	"github.com/replygate/replygate/config"
	"github.com/replygate/replygate/ports"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Holder     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Services
	Entitlements  *app.EntitlementService
	Purchases     *app.PurchaseService
	Notifications *app.NotificationService
	Stats         *app.StatsService

	// Stores (exposed for CLI inspection commands)
	Devices ports.DeviceStore
	Events  ports.EventStore

	dedupCloser io.Closer
}

// New creates and initializes the application. configPath may name a YAML
// file; when it is absent, configuration comes from REPLYGATE_* env vars.
func New(configPath string) (*App, error) {
	var (
		cfg    *config.Config
		holder *config.Holder
	)

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			h, err := config.NewHolder(configPath, logger)
			if err != nil {
				return nil, err
			}
			holder = h
			cfg = h.Get()
		}
	}
	if cfg == nil {
		c, err := config.LoadFromEnv()
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	logger = setupLogger(cfg.Logging)

	a := &App{
		Logger: logger,
		Config: cfg,
		Holder: holder,
	}

	logger.Info().Str("version", Version).Msg("initializing replygate")

	if err := a.initDatabase(cfg); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initServices(cfg); err != nil {
		a.DB.Close()
		return nil, err
	}

	a.initHTTPServer(cfg)
	a.initConfigWatch()

	return a, nil
}

func (a *App) initDatabase(cfg *config.Config) error {
	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database ready")
	return nil
}

func (a *App) initServices(cfg *config.Config) error {
	devices := sqlite.NewDeviceStore(a.DB)
	events := sqlite.NewEventStore(a.DB)
	stats := sqlite.NewStatsStore(a.DB)
	a.Devices = devices
	a.Events = events

	var dedup ports.DedupStore
	if cfg.Redis.Enabled {
		store, err := redisadapter.New(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		dedup = store
		a.dedupCloser = store
		a.Logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis dedup store enabled")
	} else {
		dedup = memory.NewDedupStore()
	}

	verifier, err := a.buildVerifier(cfg)
	if err != nil {
		return err
	}
	a.Logger.Info().Str("verifier", verifier.Name()).Msg("purchase verifier configured")

	realClock := clock.Real{}
	gen := idgen.UUID{}
	entCfg := app.EntitlementConfig{
		FreeLimit:  cfg.Entitlement.FreeMessagesPerWindow,
		Window:     cfg.Entitlement.Window,
		MaxRetries: cfg.Entitlement.MaxRetries,
	}

	a.Entitlements = app.NewEntitlementService(devices, realClock, entCfg, a.Logger)
	a.Purchases = app.NewPurchaseService(devices, events, verifier, realClock, gen, entCfg, a.Logger)
	a.Notifications = app.NewNotificationService(devices, events, dedup, realClock, gen, app.NotificationConfig{
		EntitlementConfig: entCfg,
		CancelThreshold:   cfg.Entitlement.CancelThreshold,
	}, a.Logger)
	a.Stats = app.NewStatsService(stats, realClock, a.Logger)

	return nil
}

func (a *App) buildVerifier(cfg *config.Config) (ports.PurchaseVerifier, error) {
	opts := playstore.Options{
		Mode:            cfg.PlayStore.Mode,
		Environment:     cfg.PlayStore.Environment,
		FakeTokenPrefix: cfg.PlayStore.FakeTokenPrefix,
	}
	if cfg.PlayStore.Mode == playstore.ModeGoogle {
		key, err := os.ReadFile(cfg.PlayStore.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read playstore credentials: %w", err)
		}
		opts.Google = playstore.GoogleConfig{
			PackageName:        cfg.PlayStore.PackageName,
			ServiceAccountJSON: key,
		}
	}
	return playstore.NewVerifier(context.Background(), opts)
}

func (a *App) initHTTPServer(cfg *config.Config) {
	handler := apihttp.NewUserHandler(a.Entitlements, a.Purchases, a.Notifications, a.Logger)
	if a.Metrics != nil {
		handler = handler.WithMetrics(a.Metrics, cfg.PlayStore.Mode)
	}

	router := apihttp.NewRouterWithConfig(handler, apihttp.NewHealthHandler(a.DB), a.Logger, apihttp.RouterConfig{
		Metrics:       a.Metrics,
		EnableOpenAPI: cfg.OpenAPI.Enabled,
		Version:       Version,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func (a *App) initConfigWatch() {
	if a.Holder == nil {
		return
	}

	a.Holder.OnChange(func(cfg *config.Config) {
		a.applyLogLevel(cfg.Logging)
		if a.Metrics != nil {
			a.Metrics.ConfigReloads.Inc()
			a.Metrics.ConfigLastReload.SetToCurrentTime()
		}
	})

	if err := a.Holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	a.Holder.WatchSignals()
}

func (a *App) applyLogLevel(cfg config.LoggingConfig) {
	if level, err := zerolog.ParseLevel(cfg.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
}

// Run starts the HTTP server and blocks until a signal arrives or the
// server fails, then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return a.HTTPServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	a.Close()
	return err
}

// Close releases all resources.
func (a *App) Close() {
	if a.Holder != nil {
		a.Holder.Stop()
	}
	if a.dedupCloser != nil {
		if err := a.dedupCloser.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("dedup store close error")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}
	a.Logger.Info().Msg("shutdown complete")
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Package bootstrap wires the settings store, module registry and HTTP
// server into a running bot process.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/msmafra/sogeBot/adapters/clock"
	"github.com/msmafra/sogeBot/adapters/memory"
	"github.com/msmafra/sogeBot/adapters/metrics"
	"github.com/msmafra/sogeBot/adapters/sqlite"
	"github.com/msmafra/sogeBot/app"
	"github.com/msmafra/sogeBot/config"
	"github.com/msmafra/sogeBot/domain/permission"
	"github.com/msmafra/sogeBot/modules/cooldown"
	"github.com/msmafra/sogeBot/modules/points"
	"github.com/msmafra/sogeBot/modules/top"
	"github.com/msmafra/sogeBot/ports"
	"github.com/msmafra/sogeBot/web"
)

// App is the assembled bot process.
type App struct {
	Logger     zerolog.Logger
	Holder     *config.Holder
	DB         *sqlite.DB
	Store      ports.SettingsStore
	Runtime    app.Runtime
	Registry   *app.Registry
	Settings   *app.SettingsService
	Metrics    *metrics.Collector
	HTTPServer *http.Server

	Cooldown *cooldown.Cooldown
	Points   *points.Points
	Top      *top.Top

	cancel context.CancelFunc
}

// New assembles the application from a loaded configuration holder.
func New(holder *config.Holder) (*App, error) {
	cfg := holder.Get()
	logger := setupLogger(cfg)

	a := &App{
		Logger:  logger,
		Holder:  holder,
		Metrics: metrics.New(),
	}

	if err := a.initStore(cfg); err != nil {
		return nil, err
	}

	a.Runtime = app.Runtime{
		Store:        a.Store,
		Tiers:        permission.Default(),
		Clock:        clock.Real{},
		Logger:       logger,
		Metrics:      a.Metrics,
		Primary:      func() bool { return holder.Get().IsPrimary() },
		Disabled:     func() []string { return holder.Get().Modules.Disabled },
		StrictGating: func() bool { return holder.Get().Modules.StrictCommandGating },
		HealthPeriod: cfg.Modules.HealthPeriod,
		StartupGrace: cfg.Modules.BootstrapGrace,
		LoadingPoll:  cfg.Modules.LoadingPoll,
	}

	if err := a.initModules(); err != nil {
		return nil, err
	}

	a.Settings = app.NewSettingsService(a.Runtime)

	handler := web.NewHandler(web.Deps{
		Registry:  a.Registry,
		Settings:  a.Settings,
		Collector: a.Metrics,
		Config:    holder,
		Logger:    logger,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// NewFromConfigFile loads configuration and assembles the application,
// optionally watching the file for hot reload.
func NewFromConfigFile(path string, hotReload bool) (*App, error) {
	var holder *config.Holder
	if _, err := os.Stat(path); err == nil {
		holder, err = config.NewHolder(path, setupLogger(nil))
		if err != nil {
			return nil, err
		}
		if hotReload {
			if err := holder.WatchFile(); err != nil {
				return nil, err
			}
			holder.WatchSignals()
		}
	} else {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			return nil, err
		}
		holder = config.NewStaticHolder(cfg, setupLogger(cfg))
	}
	return New(holder)
}

func (a *App) initStore(cfg *config.Config) error {
	switch cfg.Database.Driver {
	case "memory":
		a.Store = memory.NewSettingsStore()
	default:
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate database: %w", err)
		}
		a.DB = db
		a.Store = sqlite.NewSettingsStore(db)
	}
	return nil
}

func (a *App) initModules() error {
	a.Registry = app.NewRegistry(a.Logger)

	var err error
	if a.Cooldown, err = cooldown.New(a.Runtime); err != nil {
		return err
	}
	if a.Points, err = points.New(a.Runtime); err != nil {
		return err
	}
	if a.Top, err = top.New(a.Runtime); err != nil {
		return err
	}

	for _, m := range []*app.Module{
		a.Cooldown.Module(),
		a.Points.Module(),
		a.Top.Module(),
	} {
		if err := a.Registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Run resolves module dependencies, starts background tasks and serves
// HTTP until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.Registry.ResolveDependencies(ctx); err != nil {
		cancel()
		return fmt.Errorf("resolve module dependencies: %w", err)
	}
	a.Registry.StartAll(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.cancel != nil {
		a.cancel()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.Holder != nil {
		a.Holder.Stop()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg *config.Config) zerolog.Logger {
	levelStr := "info"
	format := "json"
	if cfg != nil {
		levelStr = cfg.Logging.Level
		format = cfg.Logging.Format
	} else if v := os.Getenv("SOGEBOT_LOG_LEVEL"); v != "" {
		levelStr = v
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

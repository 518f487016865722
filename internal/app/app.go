package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"t212cache/internal/alerting"
	"t212cache/internal/api"
	"t212cache/internal/config"
	"t212cache/internal/ratelimit"
	"t212cache/internal/retry"
	"t212cache/internal/store"
	syncer "t212cache/internal/sync"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// components holds the wired collaborators for one command invocation.
// store is nil when the cache is disabled; the engine then reports
// every sync as a configuration error.
type components struct {
	client *api.Client
	store  *store.Store
	engine *syncer.Engine
	close  func()
}

// buildComponents wires limiter, retry policy, upstream client, store,
// and engine together. The store opens only after the account lookup
// succeeds, so a cache is either absent or ready, never half-built.
func (a *App) buildComponents(ctx context.Context) (*components, error) {
	limiter := ratelimit.New(a.Logger)
	policy := retry.Policy{
		MaxRetries: a.Config.Retry.MaxRetries,
		BaseDelay:  a.Config.Retry.BaseDelay,
		MaxDelay:   a.Config.Retry.MaxDelay,
		Logger:     a.Logger,
	}

	client, err := api.NewClient(api.Options{
		Key:            a.Config.API.Key,
		Secret:         a.Config.API.Secret,
		Environment:    a.Config.API.Environment,
		RequestTimeout: a.Config.API.RequestTimeout,
		ConnectTimeout: a.Config.API.ConnectTimeout,
		UserAgent:      a.Config.API.UserAgent,
	}, limiter, policy, a.Logger)
	if err != nil {
		return nil, err
	}

	if !a.Config.Cache.Enabled {
		engine := syncer.New(nil, client, a.Config.Cache.FreshnessMinutes, a.Logger)
		return &components{client: client, engine: engine, close: func() {}}, nil
	}

	info, err := client.AccountInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}

	st, err := store.Open(a.Config.Cache.DatabasePath, info.ID, a.Logger)
	if err != nil {
		return nil, err
	}

	engine := syncer.New(st, client, a.Config.Cache.FreshnessMinutes, a.Logger)
	return &components{
		client: client,
		store:  st,
		engine: engine,
		close:  func() { st.Close() },
	}, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// SyncOptions configure a sync run.
type SyncOptions struct {
	Tables []string
	Force  bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Table  string
	Ticker string
	Status string
	From   *time.Time
	Limit  int
	NoSync bool
}

// ClearOptions configure the clear command.
type ClearOptions struct {
	Table string
}

// ExportOptions hold parameters for exporting cached dividend history.
type ExportOptions struct {
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

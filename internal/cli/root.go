package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ogulcanaydogan/spend-guardian/internal/config"
	"github.com/ogulcanaydogan/spend-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/spend-guardian/pkg/clock"
	"github.com/ogulcanaydogan/spend-guardian/pkg/dedup"
	"github.com/ogulcanaydogan/spend-guardian/pkg/engine"
	"github.com/ogulcanaydogan/spend-guardian/pkg/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sg",
	Short: "Spend Guardian - goal progress and spending threshold alerts",
	Long: `Spend Guardian watches spending against goals and period limits.
It sends each threshold alert at most once per scope, reminds about
inactivity, and resolves goals whose deadline has arrived.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.sg/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (*storage.SQLite, error) {
	store, err := storage.NewSQLite(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

// initDedup selects the notification marker store. The returned close
// function releases a Redis connection when one was opened.
func initDedup(ctx context.Context, cfg *config.Config, store *storage.SQLite) (dedup.Store, func() error, error) {
	if cfg.Dedup.Backend != "redis" {
		return store.Dedup(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Dedup.Redis.Addr,
		Password: cfg.Dedup.Redis.Password,
		DB:       cfg.Dedup.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Dedup.Redis.Addr, err)
	}
	return dedup.NewRedis(client, cfg.Dedup.Redis.Prefix), client.Close, nil
}

// initNotifiers creates alert notifiers from config.
func initNotifiers(cfg *config.Config, logger *slog.Logger) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.Alerts.Log.Enabled {
		notifiers = append(notifiers, alerts.NewLogNotifier(logger))
	}

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers
}

// app is a fully wired engine plus the resources it holds open.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  *clock.System
	engine *engine.Engine
	closer []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closer) - 1; i >= 0; i-- {
		errs = append(errs, a.closer[i]())
	}
	return errors.Join(errs...)
}

// initApp loads the configuration and wires storage, markers, notifiers
// and the clock into an engine.
func initApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	clk, err := cfg.NewClock()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, clock: clk, closer: []func() error{store.Close}}

	markers, closeMarkers, err := initDedup(ctx, cfg, store)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closer = append(a.closer, closeMarkers)

	sink := alerts.NewFanout(logger, initNotifiers(cfg, logger)...)
	a.engine = engine.New(store, markers, clk, sink, logger, opts)

	if clk.Debug() {
		logger.Warn("accelerated clock enabled", "inactivity_24h", clk.Threshold(clock.Inactivity24h))
	}
	return a, nil
}

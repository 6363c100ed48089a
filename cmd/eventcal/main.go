package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"eventcal/internal/calendar"
	"eventcal/internal/config"
	appLog "eventcal/internal/log"
	"eventcal/internal/store"
)

const version = "0.1.0"

var (
	configFlag string
	rootCmd    = &cobra.Command{
		Use:           "eventcal",
		Short:         "Calendar events with recurrence and webhook reminders",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", config.DefaultPath, "Path to config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand: the effective config, the
// opened store and the calendar service on top of it.
type app struct {
	cfg *config.Config
	kv  store.KV
	svc *calendar.Service
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configFlag, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	kv, err := store.Open(cfg.Storage.Driver, cfg.StoragePath())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}

	svc := calendar.New(ctx, store.NewRepository(kv),
		calendar.WithLocation(loc),
		calendar.WithDefaultSettings(cfg.SeedSettings()),
	)

	appLog.Debug("effective config",
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"storage_driver", cfg.Storage.Driver,
		"storage_path", cfg.StoragePath(),
		"reminder_interval", cfg.Reminder.Interval,
		"language", cfg.Language,
	)
	return &app{cfg: cfg, kv: kv, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		appLog.Error("failed to close store", err)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

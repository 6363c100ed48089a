package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appLog "eventcal/internal/log"
	"eventcal/internal/notify"
	"eventcal/internal/reminder"
	"eventcal/internal/web"
)

func init() {
	var listen string
	var noReminders bool

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			// --listen overrides config file listen if provided.
			if listen != "" {
				a.cfg.Listen = listen
			}

			appLog.Info("eventcal starting", "version", version, "listen", a.cfg.Listen)

			if !noReminders {
				runner := reminder.NewRunner(newScheduler(a), a.cfg.Reminder.Interval)
				if err := runner.Start(ctx); err != nil {
					return err
				}
				defer runner.Stop()
			}

			if err := web.StartServer(ctx, a.cfg, a.svc); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			appLog.Info("eventcal exiting")
			return nil
		},
	}
	serveCmd.Flags().StringVarP(&listen, "listen", "l", "", "HTTP listen address (overrides config if set)")
	serveCmd.Flags().BoolVar(&noReminders, "no-reminders", false, "Do not start the reminder scheduler")
	rootCmd.AddCommand(serveCmd)
}

func newScheduler(a *app) *reminder.Scheduler {
	return reminder.New(a.svc,
		notify.NewWeComNotifier(a.cfg.Reminder.Timeout, a.cfg.Language),
		reminder.WithSignals(a.svc.PushSignal),
	)
}

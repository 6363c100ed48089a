package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	remindCmd := &cobra.Command{
		Use:   "remind-once",
		Short: "Run a single reminder cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res := newScheduler(a).RunCycle(ctx)
			if res.Skipped {
				_, _ = fmt.Fprintln(os.Stdout, "delivery disabled; nothing sent")
				return nil
			}
			_, _ = fmt.Fprintf(os.Stdout, "%d due, %d delivered, %d failed\n", res.Attempted, res.Delivered, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d reminder(s) failed", res.Failed)
			}
			return nil
		},
	}
	rootCmd.AddCommand(remindCmd)
}

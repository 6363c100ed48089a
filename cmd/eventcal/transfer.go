package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"eventcal/internal/calendar"
	"eventcal/internal/ics"
	"eventcal/internal/importer"
)

func init() {
	var dryRun bool
	importCmd := &cobra.Command{
		Use:   "import FILE|URL",
		Short: "Merge a JSON export or an iCalendar file into the calendar",
		Long: "Reads a JSON export (an object keyed by event id) or an .ics file from a\n" +
			"path, '-' for stdin, or an http(s)/webcal URL. The whole file is validated\n" +
			"before anything is written; events with existing ids are replaced.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := readSource(ctx, args[0], a.cfg.Reminder.Timeout)
			if err != nil {
				return err
			}
			if ics.LooksLikeICS(data) {
				events, err := ics.Decode(data, a.svc.Location())
				if err != nil {
					return fmt.Errorf("parse iCalendar: %w", err)
				}
				if data, err = json.Marshal(events); err != nil {
					return err
				}
			}

			if dryRun {
				events, err := importer.Decode(data)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(os.Stdout, "valid: %d event(s)\n", len(events))
				return nil
			}

			report, err := a.svc.Import(ctx, data)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, report.String())
			return nil
		},
	}
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate only; do not write")
	rootCmd.AddCommand(importCmd)

	var format, out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the calendar as JSON or iCalendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var data []byte
			switch format {
			case "json":
				if data, _, err = a.svc.Export(ctx); err != nil {
					return err
				}
			case "ics":
				events := a.svc.Events(ctx)
				if len(events) == 0 {
					return calendar.ErrNothingToExport
				}
				data = []byte(ics.Encode(events, time.Now()))
			default:
				return fmt.Errorf("unknown --format %q (want json or ics)", format)
			}

			if out == "" || out == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(os.Stderr, "wrote %s\n", out)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or ics")
	exportCmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

// readSource loads src from a URL, stdin ("-") or a file.
func readSource(ctx context.Context, src string, timeout time.Duration) ([]byte, error) {
	switch {
	case ics.IsRemote(src):
		return ics.NewFetcher(timeout).Fetch(ctx, src)
	case src == "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(src)
	}
}

package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventcal/internal/dateutil"
	"eventcal/internal/importer"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// Import validates data as a whole collection and merges it into the live
// one. A rejected file leaves the collection untouched and the returned
// error wraps the *importer.ValidationError.
func (s *Service) Import(ctx context.Context, data []byte) (importer.Report, error) {
	incoming, err := importer.Decode(data)
	if err != nil {
		appLog.Info("import rejected", "reason", err.Error())
		return importer.Report{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.events.Clone()
	report := importer.Merge(next, incoming)
	if err := s.commitEvents(ctx, next); err != nil {
		return importer.Report{}, err
	}

	appLog.Info("import merged", "added", report.Added, "updated", report.Updated)
	return report, nil
}

// Export renders the collection in the import format, indented by two
// spaces, and the file name to offer it under.
func (s *Service) Export(ctx context.Context) ([]byte, string, error) {
	events, _ := s.Snapshot(ctx)
	if len(events) == 0 {
		return nil, "", ErrNothingToExport
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("marshal export: %w", err)
	}
	return data, ExportFilename(s.now(), "json"), nil
}

// Events returns a deep copy of the collection.
func (s *Service) Events(ctx context.Context) model.Collection {
	events, _ := s.Snapshot(ctx)
	return events
}

// ExportFilename is calendar-events-YYYY-MM-DD.<ext>, dated in UTC.
func ExportFilename(t time.Time, ext string) string {
	return "calendar-events-" + dateutil.FormatYMD(t.UTC()) + "." + ext
}

// Package calendar owns the live event collection, settings and sent log, and
// exposes the operations the CLI and HTTP API perform on them.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/reminder"
	"eventcal/internal/store"
)

var (
	ErrNotFound        = errors.New("event not found")
	ErrNothingToExport = errors.New("no events to export")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrInvalidSettings = errors.New("invalid settings")
)

// maxSignals bounds the recent delivery outcomes kept for the UI.
const maxSignals = 50

// Service guards all mutable calendar state behind one mutex. Readers get
// deep copies; writers persist first and swap the in-memory value only once
// the write succeeded.
type Service struct {
	repo *store.Repository
	loc  *time.Location
	now  func() time.Time

	mu       sync.Mutex
	events   model.Collection
	settings model.Settings
	sent     model.SentLog
	signals  []reminder.Signal
	lastID   int64
}

// Option customises a Service.
type Option func(*Service)

// WithLocation sets the zone calendar dates are anchored in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaultSettings seeds the settings used when none were persisted yet.
func WithDefaultSettings(def model.Settings) Option {
	return func(s *Service) { s.settings = def }
}

// New loads the persisted state from repo.
func New(ctx context.Context, repo *store.Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		loc:      time.Local,
		now:      time.Now,
		settings: model.DefaultSettings(),
	}
	for _, o := range opts {
		o(s)
	}

	s.events = repo.LoadEvents(ctx)
	s.sent = repo.LoadSentLog(ctx)
	// The seed stays when the stored record is absent or unreadable.
	if stored, ok := repo.LookupSettings(ctx); ok {
		s.settings = stored
	}

	appLog.Info("calendar loaded",
		"events", len(s.events),
		"sent_reminders", len(s.sent),
		"notification_method", string(s.settings.NotificationMethod),
	)
	return s
}

// Location returns the zone calendar dates are anchored in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Settings implements reminder.Source.
func (s *Service) Settings(context.Context) model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SaveSettings validates and persists new settings.
func (s *Service) SaveSettings(ctx context.Context, in model.Settings) (model.Settings, error) {
	if in.NotificationMethod == "" {
		in.NotificationMethod = model.NotificationNone
	}
	switch in.NotificationMethod {
	case model.NotificationNone, model.NotificationWeCom:
	default:
		return model.Settings{}, fmt.Errorf("%w: unknown notification method %q", ErrInvalidSettings, in.NotificationMethod)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SaveSettings(ctx, in); err != nil {
		return model.Settings{}, err
	}
	s.settings = in
	appLog.Info("settings saved", "notification_method", string(in.NotificationMethod))
	return in, nil
}

// Snapshot implements reminder.Source.
func (s *Service) Snapshot(context.Context) (model.Collection, model.SentLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.Clone(), s.sent.Clone()
}

// RecordSent implements reminder.Source. The in-memory log only changes if
// the write succeeds.
func (s *Service) RecordSent(ctx context.Context, delivered model.SentLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.sent.Clone()
	for id, v := range delivered {
		next[id] = v
	}
	if err := s.repo.SaveSentLog(ctx, next); err != nil {
		return err
	}
	s.sent = next
	return nil
}

// PushSignal records a delivery outcome for later display.
func (s *Service) PushSignal(sig reminder.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	if n := len(s.signals); n > maxSignals {
		s.signals = append([]reminder.Signal(nil), s.signals[n-maxSignals:]...)
	}
}

// Signals returns recent delivery outcomes, newest first.
func (s *Service) Signals() []reminder.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reminder.Signal, len(s.signals))
	for i, sig := range s.signals {
		out[len(s.signals)-1-i] = sig
	}
	return out
}

// Get returns one event with its derived reminder status.
func (s *Service) Get(_ context.Context, id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return View{}, ErrNotFound
	}
	return newView(ev.Clone(), s.sent), nil
}

// commitEvents persists next and, on success, makes it the live collection.
// Callers hold s.mu.
func (s *Service) commitEvents(ctx context.Context, next model.Collection) error {
	if err := s.repo.SaveEvents(ctx, next); err != nil {
		return err
	}
	s.events = next
	return nil
}

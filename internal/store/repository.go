package store

import (
	"context"
	"encoding/json"
	"fmt"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// Logical keys of the persisted records.
const (
	KeyEvents        = "calendarEvents"
	KeySettings      = "calendarSettings"
	KeySentReminders = "sentReminders"
)

// Repository reads and writes the typed records. Loads never fail: a missing,
// unreadable or malformed value is logged and replaced by its default.
type Repository struct {
	kv KV
}

func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

// KV exposes the underlying store (used for Close on shutdown).
func (r *Repository) KV() KV {
	return r.kv
}

// load unmarshals key into v and reports whether a usable value was found.
func (r *Repository) load(ctx context.Context, key string, v any) bool {
	data, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		appLog.Error("store: read failed; using default", err, "key", key)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		appLog.Error("store: malformed value; using default", err, "key", key)
		return false
	}
	return true
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := r.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (r *Repository) LoadEvents(ctx context.Context) model.Collection {
	var c model.Collection
	if !r.load(ctx, KeyEvents, &c) || c == nil {
		return model.Collection{}
	}
	return c
}

func (r *Repository) SaveEvents(ctx context.Context, c model.Collection) error {
	if c == nil {
		c = model.Collection{}
	}
	return r.save(ctx, KeyEvents, c)
}

// LoadSettings fills absent fields with defaults, so a partial record still
// yields usable settings.
func (r *Repository) LoadSettings(ctx context.Context) model.Settings {
	s, ok := r.LookupSettings(ctx)
	if !ok {
		return model.DefaultSettings()
	}
	return s
}

// LookupSettings is LoadSettings that reports whether a readable record was
// stored. A missing or malformed record yields false.
func (r *Repository) LookupSettings(ctx context.Context) (model.Settings, bool) {
	var s model.Settings
	if !r.load(ctx, KeySettings, &s) {
		return model.Settings{}, false
	}
	if s.NotificationMethod == "" {
		s.NotificationMethod = model.NotificationNone
	}
	return s, true
}

func (r *Repository) SaveSettings(ctx context.Context, s model.Settings) error {
	return r.save(ctx, KeySettings, s)
}

func (r *Repository) LoadSentLog(ctx context.Context) model.SentLog {
	var l model.SentLog
	if !r.load(ctx, KeySentReminders, &l) || l == nil {
		return model.SentLog{}
	}
	return l
}

func (r *Repository) SaveSentLog(ctx context.Context, l model.SentLog) error {
	if l == nil {
		l = model.SentLog{}
	}
	return r.save(ctx, KeySentReminders, l)
}

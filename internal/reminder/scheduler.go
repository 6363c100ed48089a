package reminder

import (
	"context"
	"sort"
	"time"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/notify"
)

// Source is the state the scheduler reads and the single write it makes.
type Source interface {
	// Settings returns a snapshot of the delivery settings.
	Settings(ctx context.Context) model.Settings
	// Snapshot returns deep copies of the event collection and the sent log.
	Snapshot(ctx context.Context) (model.Collection, model.SentLog)
	// RecordSent merges delivered id->reminder pairs into the sent log and
	// persists it.
	RecordSent(ctx context.Context, delivered model.SentLog) error
}

// Signal reports the outcome of one delivery attempt to the user interface.
type Signal struct {
	EventID string    `json:"event_id"`
	Title   string    `json:"title"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// CycleResult summarises one scheduler cycle.
type CycleResult struct {
	Skipped   bool
	Attempted int
	Delivered int
	Failed    int
}

// Scheduler runs reminder cycles against a Source.
type Scheduler struct {
	source   Source
	notifier notify.Notifier
	now      func() time.Time
	onSignal func(Signal)
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, letting tests drive a virtual clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithSignals registers a callback for per-event delivery outcomes.
func WithSignals(fn func(Signal)) Option {
	return func(s *Scheduler) { s.onSignal = fn }
}

func New(source Source, notifier notify.Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:   source,
		notifier: notifier,
		now:      time.Now,
		onSignal: func(Signal) {},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RunCycle performs one pass:
//
//   - if delivery is disabled or unconfigured, return without touching the log
//   - snapshot events and sent log
//   - attempt every due reminder sequentially, in event id order
//   - on success stage log[id] = reminder; on failure leave it Pending
//   - persist the log only when at least one delivery succeeded
func (s *Scheduler) RunCycle(ctx context.Context) CycleResult {
	var res CycleResult

	settings := s.source.Settings(ctx)
	if !settings.DeliveryEnabled() {
		res.Skipped = true
		return res
	}

	events, sent := s.source.Snapshot(ctx)
	now := s.now()

	ids := make([]string, 0, len(events))
	for id := range events {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	delivered := make(model.SentLog)
	for _, id := range ids {
		ev := events[id]
		if !IsDue(ev, sent, now) {
			continue
		}
		res.Attempted++

		err := s.notifier.Notify(ctx, settings.NotificationRobotURL, ev)
		if err != nil {
			res.Failed++
			appLog.Error("reminder delivery failed", err, "event_id", ev.ID, "reminder", ev.Reminder)
			s.onSignal(Signal{EventID: ev.ID, Title: ev.Title, OK: false, Error: err.Error(), At: s.now()})
			continue
		}

		res.Delivered++
		delivered[ev.ID] = ev.Reminder
		appLog.Info("reminder delivered", "event_id", ev.ID, "reminder", ev.Reminder)
		s.onSignal(Signal{EventID: ev.ID, Title: ev.Title, OK: true, At: s.now()})
	}

	if len(delivered) > 0 {
		if err := s.source.RecordSent(ctx, delivered); err != nil {
			// The reminders stay Pending and will be sent again next cycle.
			appLog.Error("reminder: persisting sent log failed", err, "delivered", len(delivered))
		}
	}

	appLog.Debug("reminder cycle finished",
		"attempted", res.Attempted,
		"delivered", res.Delivered,
		"failed", res.Failed,
	)
	return res
}

package calendar

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"eventcal/internal/dateutil"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// Save creates or updates an event from an edit-form payload. An empty ID
// mints a new time-based id. The reminder is never taken from the payload:
// an existing event keeps its own, a new event starts without one.
func (s *Service) Save(ctx context.Context, in model.Event) (View, error) {
	ev, err := s.clean(in)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := true
	if in.ID != "" {
		ev.ID = in.ID
		if existing, ok := s.events[in.ID]; ok {
			ev.Reminder = existing.Reminder
			created = false
		}
	} else {
		ev.ID = s.mintID()
	}

	next := s.events.Clone()
	next[ev.ID] = ev
	if err := s.commitEvents(ctx, next); err != nil {
		return View{}, err
	}

	appLog.Info("event saved", "event_id", ev.ID, "created", created, "recurring", ev.IsRecurring())
	return newView(ev.Clone(), s.sent), nil
}

// Delete removes an event and its sent-log entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	next := s.events.Clone()
	delete(next, id)
	if err := s.commitEvents(ctx, next); err != nil {
		return err
	}

	if _, ok := s.sent[id]; ok {
		sent := s.sent.Clone()
		delete(sent, id)
		if err := s.repo.SaveSentLog(ctx, sent); err != nil {
			// A stale entry is harmless: it only matters if the id comes back
			// with the exact same reminder string.
			appLog.Error("delete: pruning sent log failed", err, "event_id", id)
		} else {
			s.sent = sent
		}
	}

	appLog.Info("event deleted", "event_id", id)
	return nil
}

// SetReminder stores value as the event's reminder. value must be a
// date-time ParseDateTime accepts; see dateutil.CombineReminder for building
// one from form fields. Any new value makes the reminder Pending again.
func (s *Service) SetReminder(ctx context.Context, id, value string) (View, error) {
	value = strings.TrimSpace(value)
	if _, err := dateutil.ParseDateTime(value); err != nil {
		return View{}, fmt.Errorf("%w: reminder %q is not a date-time", ErrInvalidEvent, value)
	}
	return s.updateReminder(ctx, id, value)
}

// ClearReminder removes the event's reminder.
func (s *Service) ClearReminder(ctx context.Context, id string) (View, error) {
	return s.updateReminder(ctx, id, "")
}

func (s *Service) updateReminder(ctx context.Context, id, value string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return View{}, ErrNotFound
	}
	ev = ev.Clone()
	ev.Reminder = value

	next := s.events.Clone()
	next[id] = ev
	if err := s.commitEvents(ctx, next); err != nil {
		return View{}, err
	}

	appLog.Info("event reminder updated", "event_id", id, "reminder", value)
	return newView(ev, s.sent), nil
}

// mintID returns a millisecond timestamp id, bumped past any id already
// handed out or present. Callers hold s.mu.
func (s *Service) mintID() string {
	n := s.now().UnixMilli()
	if n <= s.lastID {
		n = s.lastID + 1
	}
	for {
		id := strconv.FormatInt(n, 10)
		if _, taken := s.events[id]; !taken {
			s.lastID = n
			return id
		}
		n++
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidEvent}, args...)...)
}

// clean validates an edit payload and returns its canonical form: trimmed
// title, YYYY-MM-DD dates, range ids filled in and only the day set that
// matches the rule's frequency.
func (s *Service) clean(in model.Event) (model.Event, error) {
	out := model.Event{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
	}
	if out.Title == "" {
		return model.Event{}, invalid("title is required")
	}
	if len(in.TimeRanges) == 0 {
		return model.Event{}, invalid("at least one date range is required")
	}

	out.TimeRanges = make([]model.TimeRange, 0, len(in.TimeRanges))
	for i, tr := range in.TimeRanges {
		start, err := dateutil.Normalize(strings.TrimSpace(tr.Start))
		if err != nil {
			return model.Event{}, invalid("range %d: invalid start date %q", i, tr.Start)
		}
		end, err := dateutil.Normalize(strings.TrimSpace(tr.End))
		if err != nil {
			return model.Event{}, invalid("range %d: invalid end date %q", i, tr.End)
		}
		if end < start {
			return model.Event{}, invalid("range %d: end date %s is before start date %s", i, end, start)
		}
		id := tr.ID
		if id == "" {
			id = uuid.NewString()
		}
		out.TimeRanges = append(out.TimeRanges, model.TimeRange{ID: id, Start: start, End: end})
	}

	if in.RecurrenceRule == nil {
		return out, nil
	}

	rule, err := cleanRule(*in.RecurrenceRule, out.TimeRanges[0].Start)
	if err != nil {
		return model.Event{}, err
	}
	out.RecurrenceRule = rule
	return out, nil
}

func cleanRule(in model.RecurrenceRule, anchorStart string) (*model.RecurrenceRule, error) {
	endDate, err := dateutil.Normalize(strings.TrimSpace(in.EndDate))
	if err != nil {
		return nil, invalid("invalid recurrence end date %q", in.EndDate)
	}
	if endDate < anchorStart {
		return nil, invalid("recurrence end date %s is before the first occurrence %s", endDate, anchorStart)
	}

	out := &model.RecurrenceRule{Frequency: in.Frequency, EndDate: endDate}
	switch in.Frequency {
	case model.FrequencyWeekly:
		days, err := daySet(in.WeeklyDays, 0, 6)
		if err != nil {
			return nil, invalid("weekly days: %v", err)
		}
		if len(days) == 0 {
			return nil, invalid("pick at least one weekday")
		}
		out.WeeklyDays = days
	case model.FrequencyMonthly:
		days, err := daySet(in.MonthlyDays, 1, 31)
		if err != nil {
			return nil, invalid("monthly days: %v", err)
		}
		if len(days) == 0 {
			return nil, invalid("enter at least one day of the month")
		}
		out.MonthlyDays = days
	default:
		return nil, invalid("unknown recurrence frequency %q", in.Frequency)
	}
	return out, nil
}

// daySet de-duplicates and sorts days, rejecting values outside [lo, hi].
func daySet(days []int, lo, hi int) ([]int, error) {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < lo || d > hi {
			return nil, fmt.Errorf("%d is outside %d..%d", d, lo, hi)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out, nil
}

package calendar

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"eventcal/internal/dateutil"
	"eventcal/internal/model"
	"eventcal/internal/recurrence"
	"eventcal/internal/reminder"
)

// DefaultRecent is the number of suggestions Recent returns by default.
const DefaultRecent = 5

// View is an event plus the fields derived from it on read.
type View struct {
	model.Event
	ReminderStatus    string `json:"reminderStatus"`
	RecurrenceSummary string `json:"recurrenceSummary,omitempty"`
}

func newView(ev model.Event, sent model.SentLog) View {
	return View{
		Event:             ev,
		ReminderStatus:    reminder.Derive(ev, sent).Kind.String(),
		RecurrenceSummary: recurrence.Describe(ev.RecurrenceRule),
	}
}

// List returns every event ordered by first range start, latest first, then
// by title. Events without ranges sort last.
func (s *Service) List(context.Context) []View {
	s.mu.Lock()
	out := make([]View, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, newView(ev.Clone(), s.sent))
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := firstStart(out[i].Event), firstStart(out[j].Event)
		if a != b {
			if a == "" || b == "" {
				return b == ""
			}
			return a > b
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func firstStart(ev model.Event) string {
	if len(ev.TimeRanges) == 0 {
		return ""
	}
	return ev.TimeRanges[0].Start
}

// Recent returns up to n events with distinct non-blank titles, newest id
// first. Only ids that are numbers (the ones Save mints) take part.
func (s *Service) Recent(_ context.Context, n int) []model.Event {
	if n <= 0 {
		n = DefaultRecent
	}

	type numbered struct {
		n  int64
		ev model.Event
	}
	s.mu.Lock()
	all := make([]numbered, 0, len(s.events))
	for id, ev := range s.events {
		v, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		all = append(all, numbered{n: v, ev: ev.Clone()})
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].n > all[j].n })

	seen := make(map[string]bool)
	out := make([]model.Event, 0, n)
	for _, e := range all {
		if strings.TrimSpace(e.ev.Title) == "" || seen[e.ev.Title] {
			continue
		}
		seen[e.ev.Title] = true
		out = append(out, e.ev)
		if len(out) >= n {
			break
		}
	}
	return out
}

// MonthView is the month grid for one calendar page.
type MonthView struct {
	Year      int               `json:"year"`
	Month     int               `json:"month"`
	Cells     []recurrence.Cell `json:"cells"`
	Truncated []string          `json:"truncated,omitempty"`
}

// Month builds the 42-cell grid for year/month in the service location.
func (s *Service) Month(ctx context.Context, year int, month time.Month) MonthView {
	events, _ := s.Snapshot(ctx)
	start, end := recurrence.MonthWindow(year, month, s.loc)
	res := recurrence.Expand(events, start, end)
	return MonthView{
		Year:      year,
		Month:     int(month),
		Cells:     recurrence.MonthGrid(year, month, s.loc, s.now(), res.Instances),
		Truncated: res.TruncatedEvents,
	}
}

// Day returns the events occurring on date (YYYY-MM-DD or YYYY/MM/DD).
func (s *Service) Day(ctx context.Context, date string) ([]View, error) {
	ymd, err := dateutil.Normalize(date)
	if err != nil {
		return nil, err
	}
	day, err := dateutil.ParseYMDIn(ymd, s.loc)
	if err != nil {
		return nil, err
	}

	events, sent := s.Snapshot(ctx)
	res := recurrence.Expand(events, day, day)
	onDay := recurrence.EventsOnDay(res.Instances, ymd)

	out := make([]View, 0, len(onDay))
	for _, ev := range onDay {
		out = append(out, newView(ev, sent))
	}
	return out, nil
}

// Occurrence is one expanded occurrence of an event.
type Occurrence struct {
	EventID string `json:"eventId"`
	Title   string `json:"eventTitle"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// Occurrences expands the whole collection over [from, to] (inclusive
// YYYY-MM-DD dates), ordered by start, then event id.
func (s *Service) Occurrences(ctx context.Context, from, to string) ([]Occurrence, []string, error) {
	start, err := s.parseDay(from)
	if err != nil {
		return nil, nil, err
	}
	end, err := s.parseDay(to)
	if err != nil {
		return nil, nil, err
	}
	if end.Before(start) {
		return nil, nil, invalid("window end %s is before start %s", to, from)
	}

	events, _ := s.Snapshot(ctx)
	res := recurrence.Expand(events, start, end)
	out := make([]Occurrence, 0, len(res.Instances))
	for _, in := range res.Instances {
		out = append(out, Occurrence{
			EventID: in.Event.ID,
			Title:   in.Event.Title,
			Start:   dateutil.FormatYMD(in.Occurrence.Start),
			End:     dateutil.FormatYMD(in.Occurrence.End),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].EventID < out[j].EventID
	})
	return out, res.TruncatedEvents, nil
}

func (s *Service) parseDay(v string) (time.Time, error) {
	ymd, err := dateutil.Normalize(v)
	if err != nil {
		return time.Time{}, err
	}
	return dateutil.ParseYMDIn(ymd, s.loc)
}

package ics

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"eventcal/internal/dateutil"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/recurrence"
)

var (
	ErrEmptyCalendar = errors.New("empty ICS body")

	errMissingUID      = errors.New("missing UID")
	errMissingStart    = errors.New("missing DTSTART")
	errUnsupportedRule = errors.New("unsupported RRULE")
)

// Decode reads an iCalendar document into a collection. Timed events are
// reduced to the calendar dates they cover in loc. VEVENTs sharing an
// X-EVENTCAL-EVENT-ID are folded back into one event with several ranges.
// A VEVENT that cannot be read is logged and skipped.
//
// The result is meant to be fed through the import validator, not trusted
// directly.
func Decode(body []byte, loc *time.Location) (model.Collection, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyCalendar
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	out := make(model.Collection)
	for _, ve := range cal.Events() {
		id, tr, rule, title, desc, perr := parseVEvent(ve, loc)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}

		ev, seen := out[id]
		if !seen {
			ev = model.Event{ID: id, Title: title, Description: desc, TimeRanges: []model.TimeRange{}}
		}
		if ev.RecurrenceRule != nil {
			// Only the anchor range of a recurring event is meaningful.
			continue
		}
		if rule != nil {
			if len(ev.TimeRanges) > 0 {
				appLog.Debug("ics: recurring VEVENT folded into one-off event ignored", "event_id", id)
				continue
			}
			ev.RecurrenceRule = rule
		}
		ev.TimeRanges = append(ev.TimeRanges, tr)
		out[id] = ev
	}

	appLog.Info("ics parse completed", "vevents", len(cal.Events()), "events", len(out))
	return out, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (string, model.TimeRange, *model.RecurrenceRule, string, string, error) {
	var tr model.TimeRange

	uid := propValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		return "", tr, nil, "", "", errMissingUID
	}
	id := propValue(ve, PropEventID)
	if id == "" {
		id = strings.TrimSuffix(uid, "@eventcal")
	}
	tr.ID = propValue(ve, PropRangeID)
	if tr.ID == "" {
		tr.ID = uid
	}

	start, allDay, err := readDate(ve, ical.ComponentPropertyDtStart, loc)
	if err != nil {
		return "", tr, nil, "", "", err
	}
	end := start
	if e, _, err := readDate(ve, ical.ComponentPropertyDtEnd, loc); err == nil && e.After(start) {
		if allDay {
			// DTEND of an all-day event is exclusive.
			end = e.AddDate(0, 0, -1)
		} else {
			end = dateutil.StartOfDay(e.Add(-time.Nanosecond))
		}
		if end.Before(start) {
			end = start
		}
	}
	tr.Start = dateutil.FormatYMD(start)
	tr.End = dateutil.FormatYMD(end)

	var rule *model.RecurrenceRule
	if raw := propValue(ve, ical.ComponentPropertyRrule); raw != "" {
		rule, err = parseRRule(raw, start)
		if err != nil {
			return "", tr, nil, "", "", err
		}
	}

	return id, tr, rule, propValue(ve, ical.ComponentPropertySummary), propValue(ve, ical.ComponentPropertyDescription), nil
}

// readDate returns the calendar date of a DTSTART/DTEND property at local
// midnight in loc, and whether the property was an all-day DATE value.
func readDate(ve *ical.VEvent, prop ical.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	p := ve.GetProperty(prop)
	if p == nil || strings.TrimSpace(p.Value) == "" {
		return time.Time{}, false, errMissingStart
	}
	val := strings.TrimSpace(p.Value)

	allDay := !strings.Contains(val, "T")
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	if allDay {
		t, err := time.ParseInLocation("20060102", val, loc)
		return t, true, err
	}

	var t time.Time
	var err error
	if prop == ical.ComponentPropertyDtEnd {
		t, err = ve.GetEndAt()
	} else {
		t, err = ve.GetStartAt()
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t = t.In(loc)
	if prop == ical.ComponentPropertyDtEnd {
		return t, false, nil
	}
	return dateutil.StartOfDay(t), false, nil
}

// parseRRule maps a WEEKLY or MONTHLY RRULE onto a recurrence rule. A rule
// without UNTIL is bounded at the expansion horizon. Parts a day set cannot
// express (INTERVAL above 1, COUNT, negative BYMONTHDAY, ordinal or monthly
// BYDAY, BYSETPOS and the other BY filters) are rejected.
func parseRRule(raw string, anchor time.Time) (*model.RecurrenceRule, error) {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, err
	}

	if opt.Interval > 1 || opt.Count > 0 {
		return nil, errUnsupportedRule
	}
	if len(opt.Bysetpos)+len(opt.Bymonth)+len(opt.Byyearday)+len(opt.Byweekno)+len(opt.Byeaster) > 0 {
		return nil, errUnsupportedRule
	}

	rule := &model.RecurrenceRule{}
	switch opt.Freq {
	case rrule.WEEKLY:
		rule.Frequency = model.FrequencyWeekly
		if len(opt.Bymonthday) > 0 {
			return nil, errUnsupportedRule
		}
		for _, wd := range opt.Byweekday {
			if wd.N() != 0 {
				return nil, errUnsupportedRule
			}
			// rrule counts Monday as 0.
			rule.WeeklyDays = append(rule.WeeklyDays, (wd.Day()+1)%7)
		}
		if len(rule.WeeklyDays) == 0 {
			rule.WeeklyDays = []int{int(anchor.Weekday())}
		}
	case rrule.MONTHLY:
		rule.Frequency = model.FrequencyMonthly
		if len(opt.Byweekday) > 0 {
			return nil, errUnsupportedRule
		}
		seen := make(map[int]bool, len(opt.Bymonthday))
		for _, d := range opt.Bymonthday {
			// Negative days count from the month end, which a day set cannot express.
			if d < 1 || d > 31 {
				return nil, errUnsupportedRule
			}
			if !seen[d] {
				seen[d] = true
				rule.MonthlyDays = append(rule.MonthlyDays, d)
			}
		}
		sort.Ints(rule.MonthlyDays)
		if len(rule.MonthlyDays) == 0 {
			rule.MonthlyDays = []int{anchor.Day()}
		}
	default:
		return nil, errUnsupportedRule
	}

	if opt.Until.IsZero() {
		rule.EndDate = dateutil.FormatYMD(anchor.AddDate(0, 0, recurrence.MaxIterations-1))
	} else {
		rule.EndDate = opt.Until.UTC().Format(dateutil.LayoutYMD)
	}
	return rule, nil
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

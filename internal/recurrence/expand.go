package recurrence

import (
	"errors"
	"sort"
	"time"

	"eventcal/internal/dateutil"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// MaxIterations bounds the day cursor of a recurring event (about five
// years). It guarantees termination for any rule, well-formed or not.
const MaxIterations = 365 * 5

// Occurrences returns every occurrence of ev that overlaps the inclusive
// window [viewStart, viewEnd], in ascending start order.
//
// Stored dates are naive; they are anchored to midnight in viewStart's
// location. Recurring events walk one calendar day at a time from the anchor
// start and stop after the rule's end date or MaxIterations days, whichever
// comes first. A recurring event whose anchor ends before it starts yields
// no occurrences.
func Occurrences(ev model.Event, viewStart, viewEnd time.Time) []model.Occurrence {
	out, _ := expandEvent(ev, viewStart, viewEnd)
	return out
}

// expandEvent expands a single event, reporting whether the iteration cap
// stopped the walk before the rule's end date.
func expandEvent(ev model.Event, viewStart, viewEnd time.Time) ([]model.Occurrence, bool) {
	if len(ev.TimeRanges) == 0 {
		return []model.Occurrence{}, false
	}
	loc := viewStart.Location()

	if ev.RecurrenceRule == nil {
		return expandSingleEvent(ev, loc, viewStart, viewEnd), false
	}
	return expandRecurringEvent(ev, loc, viewStart, viewEnd)
}

func expandSingleEvent(ev model.Event, loc *time.Location, viewStart, viewEnd time.Time) []model.Occurrence {
	out := make([]model.Occurrence, 0, len(ev.TimeRanges))
	for _, tr := range ev.TimeRanges {
		start, err := dateutil.ParseYMDIn(tr.Start, loc)
		if err != nil {
			continue
		}
		end, err := dateutil.ParseYMDIn(tr.End, loc)
		if err != nil {
			continue
		}
		if timeRangesOverlap(start, end, viewStart, viewEnd) {
			out = append(out, model.Occurrence{Start: start, End: end})
		}
	}
	return out
}

func expandRecurringEvent(ev model.Event, loc *time.Location, viewStart, viewEnd time.Time) ([]model.Occurrence, bool) {
	out := make([]model.Occurrence, 0)
	rule := ev.RecurrenceRule
	anchor := ev.TimeRanges[0]

	anchorStart, err := dateutil.ParseYMDIn(anchor.Start, loc)
	if err != nil {
		return out, false
	}
	anchorEnd, err := dateutil.ParseYMDIn(anchor.End, loc)
	if err != nil {
		return out, false
	}
	endDay, err := dateutil.ParseYMDIn(rule.EndDate, loc)
	if err != nil {
		return out, false
	}
	// The rule covers the whole of its end date.
	until := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 23, 59, 59, 0, loc)

	// Duration of one occurrence in elapsed time, not calendar days.
	dur := anchorEnd.Sub(anchorStart)
	if dur < 0 {
		return out, false
	}

	match := matcher(rule)
	cursor := anchorStart
	for i := 0; i < MaxIterations && !cursor.After(until); i++ {
		if match(cursor) {
			occEnd := cursor.Add(dur)
			if timeRangesOverlap(cursor, occEnd, viewStart, viewEnd) {
				out = append(out, model.Occurrence{Start: cursor, End: occEnd})
			}
		}
		cursor = cursor.AddDate(0, 0, 1)
	}

	return out, !cursor.After(until)
}

// matcher returns the day-membership test for rule's frequency. Unknown
// frequencies match nothing.
func matcher(rule *model.RecurrenceRule) func(time.Time) bool {
	switch rule.Frequency {
	case model.FrequencyWeekly:
		days := toSet(rule.WeeklyDays)
		return func(t time.Time) bool { return days[int(t.Weekday())] }
	case model.FrequencyMonthly:
		// No clamping: day 31 simply never matches a 30-day month.
		days := toSet(rule.MonthlyDays)
		return func(t time.Time) bool { return days[t.Day()] }
	default:
		return func(time.Time) bool { return false }
	}
}

func toSet(days []int) map[int]bool {
	set := make(map[int]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}

// Instance is one occurrence paired with the event that produced it.
type Instance struct {
	Event      model.Event
	Occurrence model.Occurrence
}

// ExpandResult wraps the expanded instances and the ids of events whose walk
// was cut short by MaxIterations.
type ExpandResult struct {
	Instances       []Instance
	TruncatedEvents []string
}

// Expand runs Occurrences over a whole collection. Instances are grouped by
// event id (ascending) and, within an event, by start.
func Expand(events model.Collection, viewStart, viewEnd time.Time) ExpandResult {
	var result ExpandResult

	ids := make([]string, 0, len(events))
	for id := range events {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ev := events[id]
		occ, hitCap := expandEvent(ev, viewStart, viewEnd)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, id)
			appLog.Error("expand: recurrence walk stopped at iteration cap",
				errors.New("max iterations reached"),
				"event_id", id,
				"cap", MaxIterations,
			)
		}
		for _, o := range occ {
			result.Instances = append(result.Instances, Instance{Event: ev, Occurrence: o})
		}
	}
	return result
}

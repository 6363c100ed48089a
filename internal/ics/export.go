// Package ics converts the event collection to and from iCalendar.
package ics

import (
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"eventcal/internal/dateutil"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

const (
	productID = "-//eventcal//calendar export//EN"

	// PropEventID ties a VEVENT back to its event when one event spans
	// several VEVENTs (one per time range).
	PropEventID ical.ComponentProperty = "X-EVENTCAL-EVENT-ID"
	// PropRangeID carries the originating time range id.
	PropRangeID ical.ComponentProperty = "X-EVENTCAL-RANGE-ID"
)

// rruleWeekdays maps 0=Sunday..6=Saturday to rrule weekdays.
var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Encode renders events as an iCalendar document. Every date is all-day with
// an exclusive DTEND. A recurring event becomes one VEVENT for its anchor
// range carrying an RRULE; a one-off event becomes one VEVENT per range.
// Ranges with unparseable dates are skipped.
func Encode(events model.Collection, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	ids := make([]string, 0, len(events))
	for id := range events {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	count := 0
	for _, id := range ids {
		ev := events[id]
		ranges := ev.TimeRanges
		if ev.IsRecurring() && len(ranges) > 0 {
			ranges = ranges[:1]
		}
		for _, tr := range ranges {
			start, err1 := dateutil.ParseYMDIn(tr.Start, time.UTC)
			end, err2 := dateutil.ParseYMDIn(tr.End, time.UTC)
			if err1 != nil || err2 != nil || end.Before(start) {
				appLog.Debug("ics export: skipping range", "event_id", id, "range_id", tr.ID)
				continue
			}

			vev := cal.AddEvent(uid(ev, tr))
			vev.SetDtStampTime(now)
			vev.SetSummary(ev.Title)
			if ev.Description != "" {
				vev.SetDescription(ev.Description)
			}
			vev.SetAllDayStartAt(start)
			vev.SetAllDayEndAt(end.AddDate(0, 0, 1))
			vev.SetProperty(PropEventID, ev.ID)
			vev.SetProperty(PropRangeID, tr.ID)

			if ev.IsRecurring() {
				if rule, ok := RRule(ev.RecurrenceRule); ok {
					vev.SetProperty(ical.ComponentPropertyRrule, rule)
				}
			}
			count++
		}
	}

	appLog.Info("ics export completed", "events", len(events), "vevents", count)
	return cal.Serialize()
}

func uid(ev model.Event, tr model.TimeRange) string {
	if ev.IsRecurring() || tr.ID == "" {
		return ev.ID + "@eventcal"
	}
	return ev.ID + "-" + tr.ID + "@eventcal"
}

// RRule renders rule as an RFC 5545 RRULE value, e.g.
// "FREQ=WEEKLY;UNTIL=20240131T235959Z;BYDAY=MO". It reports false for rules
// that cannot be expressed (unknown frequency, bad end date, no valid days).
func RRule(rule *model.RecurrenceRule) (string, bool) {
	if rule == nil {
		return "", false
	}
	endDay, err := dateutil.ParseYMDIn(rule.EndDate, time.UTC)
	if err != nil {
		return "", false
	}
	opt := rrule.ROption{
		Until: time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 23, 59, 59, 0, time.UTC),
	}

	switch rule.Frequency {
	case model.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range rule.WeeklyDays {
			if d >= 0 && d < len(rruleWeekdays) {
				opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
			}
		}
		if len(opt.Byweekday) == 0 {
			return "", false
		}
	case model.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		for _, d := range rule.MonthlyDays {
			if d >= 1 && d <= 31 {
				opt.Bymonthday = append(opt.Bymonthday, d)
			}
		}
		if len(opt.Bymonthday) == 0 {
			return "", false
		}
	default:
		return "", false
	}
	return opt.RRuleString(), true
}

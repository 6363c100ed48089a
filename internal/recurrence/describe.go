package recurrence

import (
	"strconv"
	"strings"

	"eventcal/internal/model"
)

var weekdaysShort = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Describe renders a short human summary of rule, e.g.
// "Repeats weekly on Mon, Wed until 2024-03-01". It returns "" for nil rules.
func Describe(rule *model.RecurrenceRule) string {
	if rule == nil {
		return ""
	}
	var on []string
	var unit string
	switch rule.Frequency {
	case model.FrequencyWeekly:
		unit = "weekly"
		for _, d := range rule.WeeklyDays {
			if d >= 0 && d < len(weekdaysShort) {
				on = append(on, weekdaysShort[d])
			}
		}
	case model.FrequencyMonthly:
		unit = "monthly"
		for _, d := range rule.MonthlyDays {
			on = append(on, strconv.Itoa(d))
		}
	default:
		return ""
	}

	var b strings.Builder
	b.WriteString("Repeats ")
	b.WriteString(unit)
	if len(on) > 0 {
		if rule.Frequency == model.FrequencyMonthly {
			b.WriteString(" on day ")
		} else {
			b.WriteString(" on ")
		}
		b.WriteString(strings.Join(on, ", "))
	}
	if rule.EndDate != "" {
		b.WriteString(" until ")
		b.WriteString(rule.EndDate)
	}
	return b.String()
}

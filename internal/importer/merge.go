package importer

import (
	"fmt"

	"eventcal/internal/model"
)

// Report counts how an import changed the live collection.
type Report struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

func (r Report) String() string {
	return fmt.Sprintf("%d added, %d updated", r.Added, r.Updated)
}

// Decode validates data and, only if it passes, builds a typed collection
// from the validated tree. Fields the validator does not look at, such as the
// day set that does not match a rule's frequency, are dropped.
func Decode(data []byte) (model.Collection, error) {
	v, err := decode(data)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	if err := Validate(v); err != nil {
		return nil, err
	}

	root := v.(map[string]any)
	out := make(model.Collection, len(root))
	for id, raw := range root {
		out[id] = toEvent(raw.(map[string]any))
	}
	return out, nil
}

func toEvent(evt map[string]any) model.Event {
	ev := model.Event{
		ID:          evt["eventId"].(string),
		Title:       evt["eventTitle"].(string),
		Description: evt["eventDescription"].(string),
		TimeRanges:  []model.TimeRange{},
	}
	for _, r := range evt["eventTimeRanges"].([]any) {
		tr := r.(map[string]any)
		ev.TimeRanges = append(ev.TimeRanges, model.TimeRange{
			ID:    tr["timeRangeId"].(string),
			Start: tr["timeRangeStart"].(string),
			End:   tr["timeRangeEnd"].(string),
		})
	}
	if rule, ok := evt["eventRecurrenceRule"].(map[string]any); ok {
		ev.RecurrenceRule = toRule(rule)
	}
	if s, ok := evt["eventReminder"].(string); ok {
		ev.Reminder = s
	}
	return ev
}

func toRule(rule map[string]any) *model.RecurrenceRule {
	out := &model.RecurrenceRule{
		Frequency: model.Frequency(rule["ruleFrequency"].(string)),
		EndDate:   rule["ruleEndDate"].(string),
	}
	switch out.Frequency {
	case model.FrequencyWeekly:
		out.WeeklyDays = toInts(rule["ruleWeeklyDays"].([]any))
	case model.FrequencyMonthly:
		out.MonthlyDays = toInts(rule["ruleMonthlyDays"].([]any))
	}
	return out
}

func toInts(vs []any) []int {
	out := make([]int, 0, len(vs))
	for _, v := range vs {
		n, _ := integer(v)
		out = append(out, int(n))
	}
	return out
}

// Merge writes every incoming event into dst. Ids already present count as
// updates and are overwritten in place; the rest count as additions.
func Merge(dst, incoming model.Collection) Report {
	var r Report
	for id, ev := range incoming {
		if _, exists := dst[id]; exists {
			r.Updated++
		} else {
			r.Added++
		}
		dst[id] = ev.Clone()
	}
	return r
}

package model

import "time"

// Frequency is the repetition unit of a RecurrenceRule.
type Frequency string

const (
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	return f == FrequencyWeekly || f == FrequencyMonthly
}

// TimeRange is one inclusive span of calendar dates (YYYY-MM-DD).
type TimeRange struct {
	ID    string `json:"timeRangeId"`
	Start string `json:"timeRangeStart"`
	End   string `json:"timeRangeEnd"`
}

// RecurrenceRule repeats the anchor range of an event until EndDate.
// Only the day set matching Frequency is authoritative.
type RecurrenceRule struct {
	Frequency   Frequency `json:"ruleFrequency"`
	WeeklyDays  []int     `json:"ruleWeeklyDays,omitempty"`  // 0=Sunday .. 6=Saturday
	MonthlyDays []int     `json:"ruleMonthlyDays,omitempty"` // 1..31
	EndDate     string    `json:"ruleEndDate"`
}

// Event is a single user event. For recurring events only TimeRanges[0]
// (the anchor range) is meaningful; it sets the length of each occurrence.
type Event struct {
	ID             string          `json:"eventId"`
	Title          string          `json:"eventTitle"`
	Description    string          `json:"eventDescription"`
	TimeRanges     []TimeRange     `json:"eventTimeRanges"`
	RecurrenceRule *RecurrenceRule `json:"eventRecurrenceRule,omitempty"`
	Reminder       string          `json:"eventReminder,omitempty"`
}

// IsRecurring reports whether the event carries a recurrence rule.
func (e Event) IsRecurring() bool {
	return e.RecurrenceRule != nil
}

// Clone returns a deep copy so snapshots never alias live state.
func (e Event) Clone() Event {
	out := e
	if e.TimeRanges != nil {
		out.TimeRanges = make([]TimeRange, len(e.TimeRanges))
		copy(out.TimeRanges, e.TimeRanges)
	}
	if e.RecurrenceRule != nil {
		r := *e.RecurrenceRule
		r.WeeklyDays = cloneInts(r.WeeklyDays)
		r.MonthlyDays = cloneInts(r.MonthlyDays)
		out.RecurrenceRule = &r
	}
	return out
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}

// Collection maps event id to event. It is the unit of persistence and of
// import merge.
type Collection map[string]Event

// Clone deep-copies the collection.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for id, ev := range c {
		out[id] = ev.Clone()
	}
	return out
}

// Occurrence represents a single concrete instance of an event inside a
// viewing window. It is recomputed on every query and never persisted.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// SentLog maps event id to the reminder value that was last delivered.
type SentLog map[string]string

// Clone copies the log.
func (l SentLog) Clone() SentLog {
	out := make(SentLog, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// NotificationMethod selects how reminders are delivered.
type NotificationMethod string

const (
	NotificationNone  NotificationMethod = "NONE"
	NotificationWeCom NotificationMethod = "WECOM"
)

// Settings is the persisted user settings record.
type Settings struct {
	NotificationMethod   NotificationMethod `json:"notificationMethod"`
	NotificationRobotURL string             `json:"notificationRobotUrl"`
}

// DefaultSettings returns settings with delivery disabled.
func DefaultSettings() Settings {
	return Settings{NotificationMethod: NotificationNone}
}

// DeliveryEnabled reports whether reminders can be sent with these settings.
func (s Settings) DeliveryEnabled() bool {
	return s.NotificationMethod == NotificationWeCom && s.NotificationRobotURL != ""
}

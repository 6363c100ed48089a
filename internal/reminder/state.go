// Package reminder decides which event reminders are due and delivers them.
package reminder

import (
	"time"

	"eventcal/internal/dateutil"
	"eventcal/internal/model"
)

// Kind is the delivery state of an event's reminder.
type Kind int

const (
	// None: the event has no reminder.
	None Kind = iota
	// Pending: the current reminder value has not been delivered.
	Pending
	// Sent: the sent log holds exactly the current reminder value.
	Sent
)

func (k Kind) String() string {
	switch k {
	case Pending:
		return "pending"
	case Sent:
		return "sent"
	default:
		return "none"
	}
}

// Status is derived on read from an event and the sent log; it is never
// stored. Value is the reminder string it refers to.
type Status struct {
	Kind  Kind
	Value string
}

// Derive computes the reminder status of ev. Comparison is by string, so
// editing a reminder to any new value makes it Pending again.
func Derive(ev model.Event, sent model.SentLog) Status {
	if ev.Reminder == "" {
		return Status{Kind: None}
	}
	if last, ok := sent[ev.ID]; ok && last == ev.Reminder {
		return Status{Kind: Sent, Value: ev.Reminder}
	}
	return Status{Kind: Pending, Value: ev.Reminder}
}

// IsDue reports whether ev's reminder is Pending and its time is at or
// before now. Unparseable reminders are never due.
func IsDue(ev model.Event, sent model.SentLog, now time.Time) bool {
	st := Derive(ev, sent)
	if st.Kind != Pending {
		return false
	}
	at, err := dateutil.ParseDateTime(st.Value)
	if err != nil {
		return false
	}
	return !at.After(now)
}

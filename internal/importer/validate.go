// Package importer validates untrusted event collections and merges them
// into live state.
package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"eventcal/internal/dateutil"
	"eventcal/internal/model"
)

// Code identifies which rule an import failed.
type Code string

const (
	CodeInvalidFormat             Code = "invalid_format"
	CodeEventNotObject            Code = "event_not_object"
	CodeIDMismatch                Code = "id_mismatch"
	CodeMissingTitle              Code = "missing_title"
	CodeMissingDescription        Code = "missing_description"
	CodeTimeRangesNotArray        Code = "time_ranges_not_array"
	CodeRecurringNeedsRange       Code = "recurring_needs_range"
	CodeTimeRangeNotObject        Code = "time_range_not_object"
	CodeMissingTimeRangeID        Code = "missing_time_range_id"
	CodeInvalidTimeRangeStart     Code = "invalid_time_range_start"
	CodeInvalidTimeRangeEnd       Code = "invalid_time_range_end"
	CodeRecurrenceRuleNotObject   Code = "recurrence_rule_not_object"
	CodeInvalidRecurrenceFreq     Code = "invalid_recurrence_frequency"
	CodeInvalidRecurrenceEndDate  Code = "invalid_recurrence_end_date"
	CodeWeeklyDaysEmpty           Code = "weekly_days_empty"
	CodeWeeklyDaysInvalid         Code = "weekly_days_invalid"
	CodeMonthlyDaysEmpty          Code = "monthly_days_empty"
	CodeMonthlyDaysInvalid        Code = "monthly_days_invalid"
	CodeReminderNotString         Code = "reminder_not_string"
	CodeReminderInvalidDate       Code = "reminder_invalid_date"
)

// ValidationError reports the first rule an import broke and the entry that
// broke it.
type ValidationError struct {
	Code    Code
	EventID string
	// PropertyID is the eventId found inside the entry, set for id mismatches.
	PropertyID string
}

// ErrInvalidFormat is returned when the payload is not a JSON object keyed by
// event id.
var ErrInvalidFormat = &ValidationError{Code: CodeInvalidFormat}

func (e *ValidationError) Error() string {
	id := e.EventID
	switch e.Code {
	case CodeInvalidFormat:
		return "invalid format: the file must contain a single JSON object mapping event IDs to event data"
	case CodeEventNotObject:
		return fmt.Sprintf("event data for ID %q is not an object", id)
	case CodeIDMismatch:
		return fmt.Sprintf("mismatch between key %q and eventId property %q", id, e.PropertyID)
	case CodeMissingTitle:
		return fmt.Sprintf("event title for %q is missing or not a string", id)
	case CodeMissingDescription:
		return fmt.Sprintf("event description for %q is missing or not a string", id)
	case CodeTimeRangesNotArray:
		return fmt.Sprintf("eventTimeRanges for event %q must be an array", id)
	case CodeRecurringNeedsRange:
		return fmt.Sprintf("recurring event %q must have at least one time range to define its schedule", id)
	case CodeTimeRangeNotObject:
		return fmt.Sprintf("time range in event %q is not an object", id)
	case CodeMissingTimeRangeID:
		return fmt.Sprintf("timeRangeId in event %q is missing or not a string", id)
	case CodeInvalidTimeRangeStart:
		return fmt.Sprintf("timeRangeStart in event %q has an invalid format, expected YYYY-MM-DD", id)
	case CodeInvalidTimeRangeEnd:
		return fmt.Sprintf("timeRangeEnd in event %q has an invalid format, expected YYYY-MM-DD", id)
	case CodeRecurrenceRuleNotObject:
		return fmt.Sprintf("eventRecurrenceRule for event %q must be an object if it exists", id)
	case CodeInvalidRecurrenceFreq:
		return fmt.Sprintf("invalid ruleFrequency for event %q", id)
	case CodeInvalidRecurrenceEndDate:
		return fmt.Sprintf("invalid or missing ruleEndDate for event %q", id)
	case CodeWeeklyDaysEmpty:
		return fmt.Sprintf("ruleWeeklyDays for weekly event %q must be a non-empty array", id)
	case CodeWeeklyDaysInvalid:
		return fmt.Sprintf("ruleWeeklyDays for weekly event %q must contain only integers between 0 and 6", id)
	case CodeMonthlyDaysEmpty:
		return fmt.Sprintf("ruleMonthlyDays for monthly event %q must be a non-empty array", id)
	case CodeMonthlyDaysInvalid:
		return fmt.Sprintf("ruleMonthlyDays for monthly event %q must contain only distinct integers between 1 and 31", id)
	case CodeReminderNotString:
		return fmt.Sprintf("eventReminder for event %q must be a string", id)
	case CodeReminderInvalidDate:
		return fmt.Sprintf("eventReminder for event %q is not a valid date string", id)
	default:
		return fmt.Sprintf("invalid event %q (%s)", id, e.Code)
	}
}

// Is matches any ValidationError with the same code, so callers can write
// errors.Is(err, ErrInvalidFormat) or compare against &ValidationError{Code: ...}.
func (e *ValidationError) Is(target error) bool {
	var t *ValidationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func fail(code Code, eventID string) error {
	return &ValidationError{Code: code, EventID: eventID}
}

// ValidateJSON decodes data and validates it. Bytes that are not a single JSON
// value are reported as ErrInvalidFormat.
func ValidateJSON(data []byte) error {
	v, err := decode(data)
	if err != nil {
		return ErrInvalidFormat
	}
	return Validate(v)
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// Validate checks a decoded JSON value against the shape of an event
// collection. It never panics and performs no coercion: the first failing rule
// is returned as a *ValidationError. Entries are visited in key order.
func Validate(candidate any) error {
	root, ok := candidate.(map[string]any)
	if !ok || root == nil {
		return ErrInvalidFormat
	}

	keys := make([]string, 0, len(root))
	for k := range root {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, eventID := range keys {
		if err := validateEvent(eventID, root[eventID]); err != nil {
			return err
		}
	}
	return nil
}

func validateEvent(eventID string, raw any) error {
	evt, ok := raw.(map[string]any)
	if !ok || evt == nil {
		return fail(CodeEventNotObject, eventID)
	}

	if id, ok := evt["eventId"].(string); !ok || id != eventID {
		return &ValidationError{Code: CodeIDMismatch, EventID: eventID, PropertyID: fmt.Sprint(evt["eventId"])}
	}
	if _, ok := evt["eventTitle"].(string); !ok {
		return fail(CodeMissingTitle, eventID)
	}
	if _, ok := evt["eventDescription"].(string); !ok {
		return fail(CodeMissingDescription, eventID)
	}

	ranges, ok := evt["eventTimeRanges"].([]any)
	if !ok {
		return fail(CodeTimeRangesNotArray, eventID)
	}
	rule, hasRule := evt["eventRecurrenceRule"]
	hasRule = hasRule && rule != nil
	if truthy(rule) && len(ranges) == 0 {
		return fail(CodeRecurringNeedsRange, eventID)
	}

	for _, r := range ranges {
		if err := validateTimeRange(eventID, r); err != nil {
			return err
		}
	}

	if hasRule {
		if err := validateRule(eventID, rule); err != nil {
			return err
		}
	}

	if reminder, present := evt["eventReminder"]; present && reminder != nil {
		s, ok := reminder.(string)
		if !ok {
			return fail(CodeReminderNotString, eventID)
		}
		if _, err := dateutil.ParseDateTime(s); err != nil {
			return fail(CodeReminderInvalidDate, eventID)
		}
	}
	return nil
}

func validateTimeRange(eventID string, raw any) error {
	tr, ok := raw.(map[string]any)
	if !ok || tr == nil {
		return fail(CodeTimeRangeNotObject, eventID)
	}
	if _, ok := tr["timeRangeId"].(string); !ok {
		return fail(CodeMissingTimeRangeID, eventID)
	}
	if s, ok := tr["timeRangeStart"].(string); !ok || !dateutil.IsYMD(s) {
		return fail(CodeInvalidTimeRangeStart, eventID)
	}
	if s, ok := tr["timeRangeEnd"].(string); !ok || !dateutil.IsYMD(s) {
		return fail(CodeInvalidTimeRangeEnd, eventID)
	}
	return nil
}

func validateRule(eventID string, raw any) error {
	rule, ok := raw.(map[string]any)
	if !ok {
		return fail(CodeRecurrenceRuleNotObject, eventID)
	}
	freq, _ := rule["ruleFrequency"].(string)
	if !model.Frequency(freq).Valid() {
		return fail(CodeInvalidRecurrenceFreq, eventID)
	}
	if s, ok := rule["ruleEndDate"].(string); !ok || !dateutil.IsYMD(s) {
		return fail(CodeInvalidRecurrenceEndDate, eventID)
	}

	switch model.Frequency(freq) {
	case model.FrequencyWeekly:
		days, ok := rule["ruleWeeklyDays"].([]any)
		if !ok || len(days) == 0 {
			return fail(CodeWeeklyDaysEmpty, eventID)
		}
		for _, d := range days {
			n, ok := integer(d)
			if !ok || n < 0 || n > 6 {
				return fail(CodeWeeklyDaysInvalid, eventID)
			}
		}
	case model.FrequencyMonthly:
		days, ok := rule["ruleMonthlyDays"].([]any)
		if !ok || len(days) == 0 {
			return fail(CodeMonthlyDaysEmpty, eventID)
		}
		seen := make(map[int64]bool, len(days))
		for _, d := range days {
			n, ok := integer(d)
			if !ok || n < 1 || n > 31 || seen[n] {
				return fail(CodeMonthlyDaysInvalid, eventID)
			}
			seen[n] = true
		}
	}
	return nil
}

// truthy follows JavaScript truthiness for decoded JSON values. A falsy rule
// (false, 0, "") skips the range check and is then rejected as not an object.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0 && !math.IsNaN(f)
	case float64:
		return x != 0 && !math.IsNaN(x)
	default:
		return true
	}
}

// integer reports whether v is a JSON number with no fractional part.
func integer(v any) (int64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

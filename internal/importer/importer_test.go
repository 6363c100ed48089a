package importer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/model"
)

const validFile = `{
  "1700000000000": {
    "eventId": "1700000000000",
    "eventTitle": "Standup",
    "eventDescription": "",
    "eventTimeRanges": [
      {"timeRangeId": "r1", "timeRangeStart": "2024-01-01", "timeRangeEnd": "2024-01-01"}
    ],
    "eventRecurrenceRule": {
      "ruleFrequency": "WEEKLY",
      "ruleWeeklyDays": [1, 3, 5],
      "ruleEndDate": "2024-06-30"
    },
    "eventReminder": "2024-01-01T08:45:00"
  },
  "1700000000001": {
    "eventId": "1700000000001",
    "eventTitle": "Rent",
    "eventDescription": "transfer",
    "eventTimeRanges": [
      {"timeRangeId": "r2", "timeRangeStart": "2024-01-01", "timeRangeEnd": "2024-01-01"}
    ],
    "eventRecurrenceRule": {
      "ruleFrequency": "MONTHLY",
      "ruleMonthlyDays": [1],
      "ruleEndDate": "2024-12-31"
    }
  }
}`

func code(t *testing.T, err error) Code {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr.Code
}

func TestValidateJSON_Accepts(t *testing.T) {
	require.NoError(t, ValidateJSON([]byte(validFile)))
	require.NoError(t, ValidateJSON([]byte(`{}`)))
	require.NoError(t, ValidateJSON([]byte(`{"1":{"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[]}}`)))
}

func TestValidateJSON_TopLevel(t *testing.T) {
	for _, in := range []string{`[]`, `null`, `"str"`, `42`, `not json`, `{} {}`, ``} {
		err := ValidateJSON([]byte(in))
		assert.ErrorIs(t, err, ErrInvalidFormat, in)
	}
}

func TestValidateJSON_Rules(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Code
	}{
		{"entry null", `{"1": null}`, CodeEventNotObject},
		{"entry array", `{"1": []}`, CodeEventNotObject},
		{"id mismatch", `{"1": {"eventId":"2","eventTitle":"x","eventDescription":"y","eventTimeRanges":[]}}`, CodeIDMismatch},
		{"id not string", `{"1": {"eventId":1,"eventTitle":"x","eventDescription":"y","eventTimeRanges":[]}}`, CodeIDMismatch},
		{"title missing", `{"1": {"eventId":"1","eventDescription":"y","eventTimeRanges":[]}}`, CodeMissingTitle},
		{"description number", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":3,"eventTimeRanges":[]}}`, CodeMissingDescription},
		{"ranges object", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":{}}}`, CodeTimeRangesNotArray},
		{"recurring no range", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[],
			"eventRecurrenceRule":{"ruleFrequency":"WEEKLY","ruleWeeklyDays":[1],"ruleEndDate":"2024-01-01"}}}`, CodeRecurringNeedsRange},
		{"falsy rule no range", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[],
			"eventRecurrenceRule":false}}`, CodeRecurrenceRuleNotObject},
		{"zero rule no range", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[],
			"eventRecurrenceRule":0}}`, CodeRecurrenceRuleNotObject},
		{"range not object", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":["2024-01-01"]}}`, CodeTimeRangeNotObject},
		{"range id missing", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeStart":"2024-01-01","timeRangeEnd":"2024-01-01"}]}}`, CodeMissingTimeRangeID},
		{"range start slash form", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024/01/01","timeRangeEnd":"2024-01-01"}]}}`, CodeInvalidTimeRangeStart},
		{"range end missing", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-01"}]}}`, CodeInvalidTimeRangeEnd},
		{"rule not object", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-01","timeRangeEnd":"2024-01-01"}],
			"eventRecurrenceRule":"WEEKLY"}}`, CodeRecurrenceRuleNotObject},
		{"rule frequency", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-01","timeRangeEnd":"2024-01-01"}],
			"eventRecurrenceRule":{"ruleFrequency":"DAILY","ruleEndDate":"2024-01-01"}}}`, CodeInvalidRecurrenceFreq},
		{"rule end date", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-01","timeRangeEnd":"2024-01-01"}],
			"eventRecurrenceRule":{"ruleFrequency":"WEEKLY","ruleWeeklyDays":[1]}}}`, CodeInvalidRecurrenceEndDate},
		{"weekly empty", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-01","timeRangeEnd":"2024-01-01"}],
			"eventRecurrenceRule":{"ruleFrequency":"WEEKLY","ruleWeeklyDays":[],"ruleEndDate":"2024-02-01"}}}`, CodeWeeklyDaysEmpty},
		{"weekly out of range", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-01","timeRangeEnd":"2024-01-01"}],
			"eventRecurrenceRule":{"ruleFrequency":"WEEKLY","ruleWeeklyDays":[7],"ruleEndDate":"2024-02-01"}}}`, CodeWeeklyDaysInvalid},
		{"weekly fractional", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-01","timeRangeEnd":"2024-01-01"}],
			"eventRecurrenceRule":{"ruleFrequency":"WEEKLY","ruleWeeklyDays":[1.5],"ruleEndDate":"2024-02-01"}}}`, CodeWeeklyDaysInvalid},
		{"monthly missing", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-01","timeRangeEnd":"2024-01-01"}],
			"eventRecurrenceRule":{"ruleFrequency":"MONTHLY","ruleWeeklyDays":[1],"ruleEndDate":"2024-02-01"}}}`, CodeMonthlyDaysEmpty},
		{"monthly zero", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-01","timeRangeEnd":"2024-01-01"}],
			"eventRecurrenceRule":{"ruleFrequency":"MONTHLY","ruleMonthlyDays":[0],"ruleEndDate":"2024-02-01"}}}`, CodeMonthlyDaysInvalid},
		{"monthly duplicate", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-01","timeRangeEnd":"2024-01-01"}],
			"eventRecurrenceRule":{"ruleFrequency":"MONTHLY","ruleMonthlyDays":[5,5],"ruleEndDate":"2024-02-01"}}}`, CodeMonthlyDaysInvalid},
		{"reminder number", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[],"eventReminder":1700000000}}`, CodeReminderNotString},
		{"reminder garbage", `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[],"eventReminder":"soon"}}`, CodeReminderInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSON([]byte(tt.in))
			require.Error(t, err)
			assert.Equal(t, tt.want, code(t, err))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "1", verr.EventID)
			assert.Contains(t, err.Error(), `"1"`)
		})
	}
}

func TestValidate_NullRuleAndReminderAreAbsent(t *testing.T) {
	in := `{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[],"eventRecurrenceRule":null,"eventReminder":null}}`
	assert.NoError(t, ValidateJSON([]byte(in)))
}

func TestValidate_MismatchCarriesPropertyID(t *testing.T) {
	err := ValidateJSON([]byte(`{"1": {"eventId":"2","eventTitle":"x","eventDescription":"y","eventTimeRanges":[]}}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "2", verr.PropertyID)
	assert.ErrorIs(t, err, &ValidationError{Code: CodeIDMismatch})
	assert.NotErrorIs(t, err, ErrInvalidFormat)
}

func TestValidate_FirstFailureIsDeterministic(t *testing.T) {
	in := `{"b": null, "a": {"eventId":"z"}}`
	for i := 0; i < 10; i++ {
		err := ValidateJSON([]byte(in))
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "a", verr.EventID)
		assert.Equal(t, CodeIDMismatch, verr.Code)
	}
}

func TestValidate_GoValues(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrInvalidFormat)
	assert.ErrorIs(t, Validate([]any{}), ErrInvalidFormat)
	assert.NoError(t, Validate(map[string]any{
		"1": map[string]any{
			"eventId": "1", "eventTitle": "", "eventDescription": "",
			"eventTimeRanges": []any{
				map[string]any{"timeRangeId": "a", "timeRangeStart": "2024-01-01", "timeRangeEnd": "2024-01-02"},
			},
			"eventRecurrenceRule": map[string]any{
				"ruleFrequency": "MONTHLY", "ruleMonthlyDays": []any{float64(1), 31}, "ruleEndDate": "2024-05-01",
			},
		},
	}))
}

func TestDecodeAndMergeIdempotent(t *testing.T) {
	live := model.Collection{
		"existing": {ID: "existing", Title: "Keep me", TimeRanges: []model.TimeRange{}},
	}

	incoming, err := Decode([]byte(validFile))
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	assert.Equal(t, []int{1, 3, 5}, incoming["1700000000000"].RecurrenceRule.WeeklyDays)

	first := Merge(live, incoming)
	assert.Equal(t, Report{Added: 2, Updated: 0}, first)
	snapshot := live.Clone()

	again, err := Decode([]byte(validFile))
	require.NoError(t, err)
	second := Merge(live, again)
	assert.Equal(t, Report{Added: 0, Updated: 2}, second)
	assert.Equal(t, snapshot, live)
	assert.Len(t, live, 3)
	assert.Equal(t, "0 added, 2 updated", second.String())
}

func TestDecodeRejectsWithoutPartialResult(t *testing.T) {
	out, err := Decode([]byte(`{"1": {"eventId":"2"}}`))
	assert.Nil(t, out)
	assert.Equal(t, CodeIDMismatch, code(t, err))
}

func TestDecodeFillsEmptyRanges(t *testing.T) {
	out, err := Decode([]byte(`{"1":{"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[]}}`))
	require.NoError(t, err)
	assert.NotNil(t, out["1"].TimeRanges)
	assert.Empty(t, out["1"].TimeRanges)
}

func TestDecode_IntegralFloatDays(t *testing.T) {
	out, err := Decode([]byte(`{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y",
		"eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-15","timeRangeEnd":"2024-01-15"}],
		"eventRecurrenceRule":{"ruleFrequency":"MONTHLY","ruleMonthlyDays":[15.0, 1e0],"ruleEndDate":"2024-06-30"}}}`))
	require.NoError(t, err)
	assert.Equal(t, []int{15, 1}, out["1"].RecurrenceRule.MonthlyDays)
}

func TestDecode_DropsOtherDaySet(t *testing.T) {
	out, err := Decode([]byte(`{"1": {"eventId":"1","eventTitle":"x","eventDescription":"y",
		"eventTimeRanges":[{"timeRangeId":"a","timeRangeStart":"2024-01-01","timeRangeEnd":"2024-01-01"}],
		"eventRecurrenceRule":{"ruleFrequency":"WEEKLY","ruleWeeklyDays":[1],"ruleMonthlyDays":"n/a","ruleEndDate":"2024-01-31"},
		"eventReminder":"2024-01-01T08:00:00","extra":true}}`))
	require.NoError(t, err)
	assert.Equal(t, model.Event{
		ID:          "1",
		Title:       "x",
		Description: "y",
		TimeRanges:  []model.TimeRange{{ID: "a", Start: "2024-01-01", End: "2024-01-01"}},
		RecurrenceRule: &model.RecurrenceRule{
			Frequency:  model.FrequencyWeekly,
			WeeklyDays: []int{1},
			EndDate:    "2024-01-31",
		},
		Reminder: "2024-01-01T08:00:00",
	}, out["1"])
}

func TestDecode_NotJSONIsInvalidFormat(t *testing.T) {
	_, err := Decode([]byte(`{"1":`))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

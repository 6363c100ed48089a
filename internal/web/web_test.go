package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/calendar"
	"eventcal/internal/config"
	"eventcal/internal/ics"
	"eventcal/internal/model"
	"eventcal/internal/reminder"
	"eventcal/internal/store"
)

var fixedNow = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *calendar.Service) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	clock := func() time.Time { return fixedNow }
	svc := calendar.New(context.Background(),
		store.NewRepository(store.NewMemoryStore()),
		calendar.WithLocation(time.UTC),
		calendar.WithClock(clock),
	)
	s := NewServer(cfg, svc)
	s.now = clock
	return s, svc
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func dentist() model.Event {
	return model.Event{
		Title:       "Dentist",
		Description: "bring card",
		TimeRanges:  []model.TimeRange{{Start: "2024/01/15", End: "2024/01/15"}},
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := do(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	s, _ := newTestServer(t, cfg)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code, "health stays open")

	w = do(t, h, http.MethodGet, "/api/events", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBasicAuth_HalfConfiguredIsDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin"}
	s, _ := newTestServer(t, cfg)
	assert.False(t, s.basicAuthEnabled())
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/api/events", nil).Code)
}

func TestEventsCRUD(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/api/events", dentist())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[calendar.View](t, w)
	assert.Equal(t, "1704879000000", created.ID)
	assert.Equal(t, "2024-01-15", created.TimeRanges[0].Start)
	assert.NotEmpty(t, created.TimeRanges[0].ID)
	assert.Equal(t, "none", created.ReminderStatus)

	w = do(t, h, http.MethodGet, "/api/events/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dentist", decode[calendar.View](t, w).Title)

	upd := dentist()
	upd.Title = "Dentist (moved)"
	upd.TimeRanges[0].Start, upd.TimeRanges[0].End = "2024-01-16", "2024-01-16"
	w = do(t, h, http.MethodPut, "/api/events/"+created.ID, upd)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Dentist (moved)", decode[calendar.View](t, w).Title)

	w = do(t, h, http.MethodGet, "/api/events", nil)
	list := decode[struct {
		Events []calendar.View `json:"events"`
		Count  int             `json:"count"`
	}](t, w)
	assert.Equal(t, 1, list.Count)

	w = do(t, h, http.MethodDelete, "/api/events/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/api/events/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "not found")

	w = do(t, h, http.MethodPut, "/api/events/missing", dentist())
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, http.MethodDelete, "/api/events/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateEvent_Rejected(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/events", "{not json").Code)

	bad := dentist()
	bad.TimeRanges[0].End = "2024-01-01"
	w := do(t, h, http.MethodPost, "/api/events", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	bad = dentist()
	bad.Title = " "
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/events", bad).Code)
}

func TestReminderEndpoints(t *testing.T) {
	s, svc := newTestServer(t, nil)
	h := s.Handler()
	v, err := svc.Save(context.Background(), dentist())
	require.NoError(t, err)
	path := "/api/events/" + v.ID + "/reminder"

	w := do(t, h, http.MethodPut, path, map[string]string{"date": "2024/01/15", "time": "8:30"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[calendar.View](t, w)
	assert.Equal(t, "2024-01-15T08:30:00", got.Reminder)
	assert.Equal(t, "pending", got.ReminderStatus)

	w = do(t, h, http.MethodPut, path, map[string]string{"reminder": "2024-01-15T07:00:00Z"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-01-15T07:00:00Z", decode[calendar.View](t, w).Reminder)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, path, map[string]string{"date": "2024/01/15", "time": "25:00"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, path, map[string]string{"reminder": "soon"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, path, map[string]string{}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPut, "/api/events/nope/reminder", map[string]string{"reminder": "2024-01-15T07:00:00Z"}).Code)

	w = do(t, h, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[calendar.View](t, w)
	assert.Empty(t, got.Reminder)
	assert.Equal(t, "none", got.ReminderStatus)
}

func TestCalendarAndDay(t *testing.T) {
	s, svc := newTestServer(t, nil)
	h := s.Handler()
	_, err := svc.Save(context.Background(), model.Event{
		Title:      "Standup",
		TimeRanges: []model.TimeRange{{Start: "2024-01-01", End: "2024-01-01"}},
		RecurrenceRule: &model.RecurrenceRule{
			Frequency: model.FrequencyWeekly, WeeklyDays: []int{1}, EndDate: "2024-01-31",
		},
	})
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/api/calendar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[calendarResponse](t, w)
	assert.Equal(t, 2024, page.Year)
	assert.Equal(t, 1, page.Month)
	assert.Equal(t, "sunday", page.WeekStart)
	assert.Equal(t, "UTC", page.Timezone)
	require.Len(t, page.Cells, 42)

	marked := []string{}
	for _, c := range page.Cells {
		if c.HasEvents {
			marked = append(marked, c.Date)
		}
	}
	assert.Equal(t, []string{"2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22", "2024-01-29"}, marked)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/calendar?year=2024&month=13", nil).Code)

	w = do(t, h, http.MethodGet, "/api/day?date=2024/01/22", nil)
	require.Equal(t, http.StatusOK, w.Code)
	day := decode[struct {
		Events []calendar.View `json:"events"`
	}](t, w)
	require.Len(t, day.Events, 1)
	assert.Equal(t, "Standup", day.Events[0].Title)
	assert.Equal(t, "Repeats weekly on Mon until 2024-01-31", day.Events[0].RecurrenceSummary)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/day?date=someday", nil).Code)

	w = do(t, h, http.MethodGet, "/api/occurrences?from=2024-01-01&to=2024-01-10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	occ := decode[struct {
		Occurrences []calendar.Occurrence `json:"occurrences"`
	}](t, w)
	require.Len(t, occ.Occurrences, 2)
	assert.Equal(t, "2024-01-08", occ.Occurrences[1].Start)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/occurrences?from=2024-01-10&to=2024-01-01", nil).Code)
}

func TestRecent(t *testing.T) {
	s, svc := newTestServer(t, nil)
	ctx := context.Background()
	for _, title := range []string{"Gym", "Dentist", "Gym"} {
		ev := dentist()
		ev.Title = title
		_, err := svc.Save(ctx, ev)
		require.NoError(t, err)
	}

	w := do(t, s.Handler(), http.MethodGet, "/api/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct {
		Events []model.Event `json:"events"`
	}](t, w)
	require.Len(t, got.Events, 2)
	assert.Equal(t, "Gym", got.Events[0].Title)
	assert.Equal(t, "Dentist", got.Events[1].Title)
}

func TestImportJSON(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()
	body := `{"1":{"eventId":"1","eventTitle":"x","eventDescription":"y","eventTimeRanges":[]}}`

	w := do(t, h, http.MethodPost, "/api/import", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1 added, 0 updated", decode[map[string]any](t, w)["message"])

	w = do(t, h, http.MethodPost, "/api/import", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0 added, 1 updated", decode[map[string]any](t, w)["message"])

	w = do(t, h, http.MethodPost, "/api/import", `{"1":{"eventId":"2","eventTitle":"x","eventDescription":"y","eventTimeRanges":[]}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "mismatch")

	w = do(t, h, http.MethodPost, "/api/import", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportICS(t *testing.T) {
	s, svc := newTestServer(t, nil)
	cal := ics.Encode(model.Collection{
		"7": {ID: "7", Title: "Trip", TimeRanges: []model.TimeRange{{ID: "a", Start: "2024-02-01", End: "2024-02-03"}}},
	}, fixedNow)

	w := do(t, s.Handler(), http.MethodPost, "/api/import", cal)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	v, err := svc.Get(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, []model.TimeRange{{ID: "a", Start: "2024-02-01", End: "2024-02-03"}}, v.TimeRanges)
}

func TestExport(t *testing.T) {
	s, svc := newTestServer(t, nil)
	h := s.Handler()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/export", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/export.ics", nil).Code)

	_, err := svc.Save(context.Background(), dentist())
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="calendar-events-2024-01-10.json"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "{\n  \""))
	var exported model.Collection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exported))
	assert.Len(t, exported, 1)

	w = do(t, h, http.MethodGet, "/api/export.ics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="calendar-events-2024-01-10.ics"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "SUMMARY:Dentist")
}

func TestSettings(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.DefaultSettings(), decode[model.Settings](t, w))

	in := model.Settings{NotificationMethod: model.NotificationWeCom, NotificationRobotURL: "https://hook.example"}
	w = do(t, h, http.MethodPut, "/api/settings", in)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, in, decode[model.Settings](t, w))

	w = do(t, h, http.MethodPut, "/api/settings", map[string]string{"notificationMethod": "SMS"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, in, decode[model.Settings](t, w))
}

func TestNotifications(t *testing.T) {
	s, svc := newTestServer(t, nil)
	svc.PushSignal(reminder.Signal{EventID: "1", Title: "a", OK: true, At: fixedNow})
	svc.PushSignal(reminder.Signal{EventID: "2", Title: "b", Error: "boom", At: fixedNow})

	w := do(t, s.Handler(), http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct {
		Notifications []reminder.Signal `json:"notifications"`
	}](t, w)
	require.Len(t, got.Notifications, 2)
	assert.Equal(t, "2", got.Notifications[0].EventID)
	assert.Equal(t, "boom", got.Notifications[0].Error)
}

func TestRouting(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", decode[map[string]string](t, w)["error"])

	w = do(t, h, http.MethodPatch, "/api/events", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStartServer_ShutsDownOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	_, svc := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartServer(ctx, cfg, svc) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"eventcal/internal/calendar"
	"eventcal/internal/dateutil"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// handleListEvents GET /api/events
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	views := s.svc.List(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"events": views, "count": len(views)})
}

// handleCreateEvent POST /api/events
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if !decodeBody(w, r, &ev) {
		return
	}
	v, err := s.svc.Save(r.Context(), ev)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// handleGetEvent GET /api/events/{id}
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleUpdateEvent PUT /api/events/{id}
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.svc.Get(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	var ev model.Event
	if !decodeBody(w, r, &ev) {
		return
	}
	ev.ID = id
	v, err := s.svc.Save(r.Context(), ev)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleDeleteEvent DELETE /api/events/{id}
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reminderRequest carries either a full date-time or the date and HH:MM
// fields of the reminder form.
type reminderRequest struct {
	Reminder string `json:"reminder"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

// handleSetReminder PUT /api/events/{id}/reminder
func (s *Server) handleSetReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	value := strings.TrimSpace(req.Reminder)
	if value == "" {
		if req.Date == "" || req.Time == "" {
			writeError(w, http.StatusBadRequest, "reminder or date and time are required")
			return
		}
		var err error
		if value, err = dateutil.CombineReminder(req.Date, req.Time); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	v, err := s.svc.SetReminder(r.Context(), mux.Vars(r)["id"], value)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleClearReminder DELETE /api/events/{id}/reminder
func (s *Server) handleClearReminder(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.ClearReminder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type calendarResponse struct {
	calendar.MonthView
	Timezone  string `json:"timezone"`
	WeekStart string `json:"week_start"`
}

// handleCalendar GET /api/calendar?year=2024&month=2
//
// Missing parameters default to the current month in the calendar zone.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.svc.Location())
	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), now.Year())
	month := parseIntDefault(q.Get("month"), int(now.Month()))
	if month < 1 || month > 12 || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, "year or month out of range")
		return
	}

	weekStart := "sunday"
	if s.cfg != nil {
		weekStart = s.cfg.WeekStart
	}
	writeJSON(w, http.StatusOK, calendarResponse{
		MonthView: s.svc.Month(r.Context(), year, time.Month(month)),
		Timezone:  s.svc.Location().String(),
		WeekStart: weekStart,
	})
}

// handleDay GET /api/day?date=2024-02-14
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = dateutil.FormatYMD(s.now().In(s.svc.Location()))
	}
	views, err := s.svc.Day(r.Context(), date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "events": views})
}

// handleOccurrences GET /api/occurrences?from=2024-01-01&to=2024-01-31
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	occ, truncated, err := s.svc.Occurrences(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"occurrences": occ,
		"truncated":   truncated,
	})
}

// handleRecent GET /api/recent?limit=5
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), calendar.DefaultRecent)
	writeJSON(w, http.StatusOK, map[string]any{"events": s.svc.Recent(r.Context(), limit)})
}

// handleImport POST /api/import
//
// The body is either a JSON export or an iCalendar file. iCalendar input is
// converted and then goes through the same validation as JSON.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	if ics.LooksLikeICS(body) {
		events, err := ics.Decode(body, s.svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid iCalendar file: "+err.Error())
			return
		}
		if body, err = json.Marshal(events); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	report, err := s.svc.Import(r.Context(), body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"added":   report.Added,
		"updated": report.Updated,
		"message": report.String(),
	})
}

// handleExport GET /api/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, name, err := s.svc.Export(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAttachment(w, "application/json; charset=utf-8", name, data)
}

// handleExportICS GET /api/export.ics
func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	events := s.svc.Events(r.Context())
	if len(events) == 0 {
		writeServiceError(w, calendar.ErrNothingToExport)
		return
	}
	now := s.now()
	writeAttachment(w, "text/calendar; charset=utf-8", calendar.ExportFilename(now, "ics"), []byte(ics.Encode(events, now)))
}

func writeAttachment(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		appLog.Error("failed to write export", err, "filename", name)
	}
}

// handleGetSettings GET /api/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Settings(r.Context()))
}

// handlePutSettings PUT /api/settings
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var in model.Settings
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := s.svc.SaveSettings(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleNotifications GET /api/notifications
//
// Recent delivery outcomes of the reminder scheduler, newest first.
func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notifications": s.svc.Signals()})
}

// Package web exposes the calendar over a JSON HTTP API.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"eventcal/internal/calendar"
	"eventcal/internal/config"
	"eventcal/internal/dateutil"
	"eventcal/internal/importer"
	appLog "eventcal/internal/log"
)

// maxBodyBytes bounds request bodies, imports included.
const maxBodyBytes = 8 << 20

const shutdownTimeout = 5 * time.Second

// Server provides the HTTP API over a calendar.Service.
type Server struct {
	cfg    *config.Config
	svc    *calendar.Service
	router *mux.Router
	now    func() time.Time
}

// NewServer constructs a new Server and registers its routes.
func NewServer(cfg *config.Config, svc *calendar.Service) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Half-configured credentials leave the API open.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="EventCal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// recoverMiddleware turns a handler panic into a 500.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				appLog.Error("http handler panic", nil, "path", r.URL.Path, "method", r.Method, "panic", v)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// StartServer serves the API on cfg.Listen until ctx is cancelled, then
// shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, svc *calendar.Service) error {
	s := NewServer(cfg, svc)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(recoverMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	r.HandleFunc("/api/events", s.handleListEvents).Methods("GET")
	r.HandleFunc("/api/events", s.handleCreateEvent).Methods("POST")
	r.HandleFunc("/api/events/{id}", s.handleGetEvent).Methods("GET")
	r.HandleFunc("/api/events/{id}", s.handleUpdateEvent).Methods("PUT")
	r.HandleFunc("/api/events/{id}", s.handleDeleteEvent).Methods("DELETE")
	r.HandleFunc("/api/events/{id}/reminder", s.handleSetReminder).Methods("PUT")
	r.HandleFunc("/api/events/{id}/reminder", s.handleClearReminder).Methods("DELETE")

	r.HandleFunc("/api/calendar", s.handleCalendar).Methods("GET")
	r.HandleFunc("/api/day", s.handleDay).Methods("GET")
	r.HandleFunc("/api/occurrences", s.handleOccurrences).Methods("GET")
	r.HandleFunc("/api/recent", s.handleRecent).Methods("GET")

	r.HandleFunc("/api/import", s.handleImport).Methods("POST")
	r.HandleFunc("/api/export", s.handleExport).Methods("GET")
	r.HandleFunc("/api/export.ics", s.handleExportICS).Methods("GET")

	r.HandleFunc("/api/settings", s.handleGetSettings).Methods("GET")
	r.HandleFunc("/api/settings", s.handlePutSettings).Methods("PUT")
	r.HandleFunc("/api/notifications", s.handleNotifications).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// writeServiceError maps service errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *importer.ValidationError
	switch {
	case errors.Is(err, calendar.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, calendar.ErrNothingToExport):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr),
		errors.Is(err, calendar.ErrInvalidEvent),
		errors.Is(err, calendar.ErrInvalidSettings),
		errors.Is(err, dateutil.ErrInvalidDate),
		errors.Is(err, dateutil.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("api request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

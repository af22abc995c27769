package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/joescharf/shamescroll/internal/blocking"
	"github.com/joescharf/shamescroll/internal/broadcast"
	"github.com/joescharf/shamescroll/internal/clock"
	"github.com/joescharf/shamescroll/internal/coordinator"
	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/report"
	"github.com/joescharf/shamescroll/internal/store"
)

// Runtime message types accepted by POST /api/v1/messages.
const (
	MsgStartFocus       = "START_FOCUS"
	MsgStopFocus        = "STOP_FOCUS"
	MsgGetFocusState    = "GET_FOCUS_STATE"
	MsgGetStreakData    = "GET_STREAK_DATA"
	MsgGetCurrentStatus = "GET_CURRENT_STATUS"
	MsgDismissWarning   = "DISMISS_WARNING"
)

// maxReportDays bounds ?days= on the dashboard endpoints.
const maxReportDays = 366

// Server provides the REST API handlers.
type Server struct {
	coord *coordinator.Coordinator
	store store.Store
	rules blocking.Engine
	hub   *broadcast.Hub
	clock clock.Clock
}

// NewServer creates a new API server. A nil clk uses the system clock.
func NewServer(c *coordinator.Coordinator, s store.Store, rules blocking.Engine, hub *broadcast.Hub, clk clock.Clock) *Server {
	if clk == nil {
		clk = clock.System{}
	}
	return &Server{coord: c, store: s, rules: rules, hub: hub, clock: clk}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/messages", s.handleMessage)
	mux.HandleFunc("POST /api/v1/tabs", s.tabEvent)

	mux.HandleFunc("GET /api/v1/focus", s.getFocus)
	mux.HandleFunc("POST /api/v1/focus/start", s.startFocus)
	mux.HandleFunc("POST /api/v1/focus/stop", s.stopFocus)
	mux.HandleFunc("GET /api/v1/streak", s.getStreak)
	mux.HandleFunc("GET /api/v1/status", s.getStatus)
	mux.HandleFunc("POST /api/v1/warning/dismiss", s.dismissWarning)

	mux.HandleFunc("GET /api/v1/today", s.getToday)
	mux.HandleFunc("GET /api/v1/records", s.listRecords)
	mux.HandleFunc("GET /api/v1/report", s.getReport)
	mux.HandleFunc("GET /api/v1/rules", s.listRules)

	mux.HandleFunc("GET /api/v1/preferences/timer-hidden", s.getTimerHidden)
	mux.HandleFunc("PUT /api/v1/preferences/timer-hidden", s.setTimerHidden)

	mux.HandleFunc("GET /api/v1/events", s.events)
	mux.HandleFunc("GET /api/v1/health", s.health)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// daysParam reads ?days=N, falling back to the dashboard default.
func daysParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("days")
	if v == "" {
		return report.DefaultDays, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxReportDays {
		return 0, fmt.Errorf("days must be between 1 and %d", maxReportDays)
	}
	return n, nil
}

// --- Runtime messages ---

type messageRequest struct {
	Type    string `json:"type"`
	Mission string `json:"mission,omitempty"`
}

// handleMessage answers the extension's runtime messages with the same
// response shapes the popup and dashboard expect.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ctx := r.Context()

	switch req.Type {
	case MsgStartFocus:
		mission := strings.TrimSpace(req.Mission)
		if mission == "" {
			writeError(w, http.StatusBadRequest, "mission is required")
			return
		}
		if err := s.coord.Dispatch(ctx, coordinator.Event{Kind: coordinator.EventStartFocus, Mission: mission}); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"focusState": s.coord.FocusState()})
	case MsgStopFocus:
		if err := s.coord.Dispatch(ctx, coordinator.Event{Kind: coordinator.EventStopFocus}); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"focusState": s.coord.FocusState()})
	case MsgGetFocusState:
		writeJSON(w, http.StatusOK, map[string]any{"focusState": s.coord.FocusState()})
	case MsgGetStreakData:
		writeJSON(w, http.StatusOK, map[string]any{"streakData": s.coord.StreakData()})
	case MsgGetCurrentStatus:
		status, err := s.coord.CurrentStatus(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp := map[string]any{"isTracking": status.IsTracking}
		if status.IsTracking {
			resp["host"] = status.Host
			resp["time"] = status.ElapsedSeconds
			resp["elapsedSeconds"] = status.ElapsedSeconds
			resp["warningLevel"] = status.WarningLevel
		}
		writeJSON(w, http.StatusOK, resp)
	case MsgDismissWarning:
		if err := s.coord.DismissWarning(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown message type %q", req.Type))
	}
}

// --- Tabs ---

type tabRequest struct {
	Event string `json:"event"`
	URL   string `json:"url"`
}

func (s *Server) tabEvent(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	kind := coordinator.EventKind(req.Event)
	if kind == "" {
		kind = coordinator.EventTabActivated
	}
	if !kind.IsTabEvent() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown tab event %q", req.Event))
		return
	}
	if err := s.coord.Dispatch(r.Context(), coordinator.Event{Kind: kind, URL: req.URL}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status, err := s.coord.CurrentStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// --- Focus ---

type startFocusRequest struct {
	Mission string `json:"mission"`
}

func (s *Server) getFocus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.FocusState())
}

func (s *Server) startFocus(w http.ResponseWriter, r *http.Request) {
	var req startFocusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	mission := strings.TrimSpace(req.Mission)
	if mission == "" {
		writeError(w, http.StatusBadRequest, "mission is required")
		return
	}
	if err := s.coord.Dispatch(r.Context(), coordinator.Event{Kind: coordinator.EventStartFocus, Mission: mission}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.coord.FocusState())
}

func (s *Server) stopFocus(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Dispatch(r.Context(), coordinator.Event{Kind: coordinator.EventStopFocus}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.coord.FocusState())
}

func (s *Server) getStreak(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.StreakData())
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.coord.CurrentStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) dismissWarning(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.DismissWarning(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Dashboard ---

// TodayResponse is the popup's view of the rolling snapshots.
type TodayResponse struct {
	Today      *models.DaySnapshot `json:"today"`
	Yesterday  *models.DaySnapshot `json:"yesterday"`
	ActiveHost string              `json:"activeHost"`
}

func (s *Server) getToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	todayKey := clock.DayKey(s.clock.Now())

	today, err := s.store.GetDaySnapshot(ctx, models.SlotToday)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if today == nil || today.Date != todayKey {
		today = models.NewDaySnapshot(todayKey)
	}
	yesterday, err := s.store.GetDaySnapshot(ctx, models.SlotYesterday)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if yesterday == nil {
		yesterday = models.NewDaySnapshot(models.NoDate)
	}
	host, err := s.store.GetActiveHost(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, TodayResponse{Today: today, Yesterday: yesterday, ActiveHost: host})
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	days, err := daysParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since := report.Since(clock.DayKey(s.clock.Now()), days)
	records, err := s.store.ListDailyRecords(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*models.DailyRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	days, err := daysParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	today := clock.DayKey(s.clock.Now())
	records, err := s.store.ListDailyRecords(r.Context(), report.Since(today, days))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report.Build(records, today, days))
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.Rules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rules == nil {
		rules = []models.BlockRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// --- Preferences ---

type timerHiddenBody struct {
	IsTimerHidden *bool `json:"isTimerHidden"`
}

func (s *Server) getTimerHidden(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.GetSetting(r.Context(), store.SettingTimerHidden)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isTimerHidden": v == "true"})
}

func (s *Server) setTimerHidden(w http.ResponseWriter, r *http.Request) {
	var body timerHiddenBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.IsTimerHidden == nil {
		writeError(w, http.StatusBadRequest, "isTimerHidden is required")
		return
	}
	hidden := *body.IsTimerHidden
	if err := s.store.SetSetting(r.Context(), store.SettingTimerHidden, strconv.FormatBool(hidden)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.Publish(broadcast.Message{
		Type:    broadcast.TypePreferencesUpdate,
		Payload: map[string]any{"isTimerHidden": hidden},
	})
	writeJSON(w, http.StatusOK, map[string]bool{"isTimerHidden": hidden})
}

// --- Events ---

// events streams broadcast messages as server-sent events until the client
// disconnects. Messages published while the stream is backed up are lost.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	msgs, cancel := s.hub.Subscribe(64)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Warn("encode event", "type", msg.Type, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.hub.Subscribers(),
	})
}

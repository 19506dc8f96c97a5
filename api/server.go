package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"

	"github.com/wricardo/driving-tour/game/config"
	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/minigame"
	"github.com/wricardo/driving-tour/game/service"
	"github.com/wricardo/driving-tour/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	log       *slog.Logger
	service   service.TourService
	hub       *websocket.Hub
	router    *mux.Router
	mcp       http.Handler
	staticDir string
}

// Option configures a Server.
type Option func(*Server)

// WithMCPHandler mounts an MCP streamable HTTP handler at /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// WithStaticDir serves files from dir for every unmatched path.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// NewServer creates a new API server. hub may be nil.
func NewServer(log *slog.Logger, tourService service.TourService, hub *websocket.Hub, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		log:     log,
		service: tourService,
		hub:     hub,
		router:  mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	// Must be registered before the {id} pattern
	api.HandleFunc("/sessions/unified", s.handleUnifiedSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Driving
	api.HandleFunc("/sessions/{id}/snapshot", s.handleGetSnapshot).Methods("GET")
	api.HandleFunc("/sessions/{id}/drive", s.handleDrive).Methods("POST")
	api.HandleFunc("/sessions/{id}/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/sessions/{id}/resize", s.handleResize).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Stops
	api.HandleFunc("/sessions/{id}/stop", s.handleGetStop).Methods("GET")
	api.HandleFunc("/sessions/{id}/stop/select", s.handleSelectStage).Methods("POST")
	api.HandleFunc("/sessions/{id}/stop/action", s.handleStageAction).Methods("POST")
	api.HandleFunc("/sessions/{id}/stop/close", s.handleCloseStop).Methods("POST")

	// Track authoring
	api.HandleFunc("/sessions/{id}/recording", s.handleRecording).Methods("POST")
	api.HandleFunc("/sessions/{id}/track", s.handleGetTrack).Methods("GET")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/configs/{name}", s.handleSaveConfig).Methods("POST")
	api.HandleFunc("/leaderboard/{config}", s.handleLeaderboard).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp)
	}

	if s.staticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message, "code": status})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, config.ErrConfigNotFound),
		errors.Is(err, engine.ErrStopNotFound),
		errors.Is(err, engine.ErrStageNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, engine.ErrNotGameStage),
		errors.Is(err, minigame.ErrUnknownKind),
		errors.Is(err, minigame.ErrInvalidMove),
		errors.Is(err, minigame.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNoActiveStop),
		errors.Is(err, engine.ErrStageLocked),
		errors.Is(err, service.ErrStageDone),
		errors.Is(err, minigame.ErrBoardLocked),
		errors.Is(err, minigame.ErrAlreadySolved):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Server errors are
// reported to Sentry.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		hub.CaptureException(err)
	}
	respondMessage(w, status, err.Error())
}

// decodeBody decodes an optional JSON body. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) broadcast(sessionID string, snap *engine.Snapshot, events ...engine.Event) {
	if s.hub != nil && snap != nil {
		s.hub.BroadcastToSession(sessionID, snap, events...)
	}
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigName string `json:"config_name,omitempty"`
		ConfigID   string `json:"config_id,omitempty"`
		PlayerName string `json:"player_name,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	configName := req.ConfigName
	if configName == "" {
		configName = req.ConfigID
	}

	session, err := s.service.CreateSession(r.Context(), configName, req.PlayerName)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.log.Info("session created", "session", session.ID, "tour", session.ConfigName, "player", session.PlayerName)
	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default)
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Driving Handlers

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.GetSnapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDrive(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req service.DriveRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Drive(r.Context(), sessionID, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.broadcast(sessionID, &result.Snapshot, result.Events...)

	s.log.Info("drive",
		"session", sessionID,
		"frames", fmt.Sprintf("%d/%d", result.FramesExecuted, result.RequestedFrames),
		"stop", result.StopReasonCode,
		"progress", fmt.Sprintf("%.1f->%.1f", result.StartProgress, result.EndProgress),
	)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Paused *bool `json:"paused,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := s.service.SetPaused(r.Context(), sessionID, req.Paused)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.broadcast(sessionID, snap)
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	snap, err := s.service.Reset(r.Context(), sessionID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.broadcast(sessionID, snap)
	respondJSON(w, http.StatusOK, map[string]any{
		"message":  "Tour reset successfully",
		"snapshot": snap,
	})
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := s.service.Resize(r.Context(), sessionID, req.Width, req.Height)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.broadcast(sessionID, snap)
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	opts := service.HistoryOptions{
		Page:  1,
		Limit: service.DefaultHistorySize,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// Stop Handlers

func (s *Server) handleGetStop(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.GetStop(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSelectStage(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		StageID string `json:"stage_id"`
	}
	if err := decodeBody(r, &req); err != nil || req.StageID == "" {
		respondMessage(w, http.StatusBadRequest, "stage_id is required")
		return
	}

	result, err := s.service.SelectStage(r.Context(), sessionID, req.StageID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.publishStop(r.Context(), sessionID, result.Events)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleStageAction(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req service.StageActionRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.StageAction(r.Context(), sessionID, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.publishStop(r.Context(), sessionID, result.Events)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCloseStop(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	result, err := s.service.CloseStop(r.Context(), sessionID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.broadcast(sessionID, &result.Snapshot, result.Events...)
	if result.Lap != nil {
		s.log.Info("lap recorded", "session", sessionID, "lap", result.Lap.LapTime, "placement", result.Lap.Placement)
	}
	respondJSON(w, http.StatusOK, result)
}

// publishStop pushes the snapshot after a stage change so watchers see
// stop markers update.
func (s *Server) publishStop(ctx context.Context, sessionID string, events []engine.Event) {
	if s.hub == nil {
		return
	}
	snap, err := s.service.GetSnapshot(ctx, sessionID)
	if err != nil {
		s.log.Warn("failed to read snapshot for broadcast", "session", sessionID, "err", err)
		return
	}
	s.broadcast(sessionID, snap, events...)
}

// Track Handlers

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req service.RecordingRequest
	if err := decodeBody(r, &req); err != nil || req.Action == "" {
		respondMessage(w, http.StatusBadRequest, "action is required")
		return
	}

	result, err := s.service.Record(r.Context(), sessionID, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.broadcast(sessionID, &result.Snapshot)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	points, err := s.service.GetTrack(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":          len(points),
		"control_points": points,
	})
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configName := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	tour, err := s.service.LoadConfig(r.Context(), configName)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, tour)
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	configName := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	var tour engine.TourConfig
	if err := json.NewDecoder(r.Body).Decode(&tour); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.SaveConfig(r.Context(), configName, &tour); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.log.Info("tour saved", "tour", configName, "stops", len(tour.Stops), "control_points", len(tour.Track.ControlPoints))
	respondJSON(w, http.StatusCreated, map[string]any{
		"message":   "Configuration saved successfully",
		"config_id": configName,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	configName := strings.TrimSuffix(mux.Vars(r)["config"], ".json")

	entries, err := s.service.Leaderboard(r.Context(), configName)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rows := make([]map[string]any, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, map[string]any{
			"rank":      i + 1,
			"player_id": e.PlayerID,
			"name":      e.Name,
			"lap_ms":    e.LapMS,
			"lap_time":  engine.FormatLapTime(e.LapMS),
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"config_name": configName,
		"entries":     rows,
	})
}

// Unified Sessions Handler

func (s *Server) handleUnifiedSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var sessions []*service.SessionInfo
	if sessionIDs := query.Get("sessionIds"); sessionIDs != "" {
		for _, id := range strings.Split(sessionIDs, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if session, err := s.service.GetSession(r.Context(), id); err == nil {
				sessions = append(sessions, session)
			}
		}
	} else {
		all, err := s.service.ListSessions(r.Context())
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		configName := query.Get("configName")
		for _, session := range all {
			if configName == "" || session.ConfigName == configName {
				sessions = append(sessions, session)
			}
		}
	}

	configName := ""
	totalStops := 0
	if len(sessions) > 0 {
		configName = sessions[0].ConfigName
		if sessions[0].TourConfig != nil {
			totalStops = len(sessions[0].TourConfig.Stops)
		}
	}

	rows := make([]map[string]any, 0, len(sessions))
	for _, session := range sessions {
		rows = append(rows, map[string]any{
			"session_id":    session.ID,
			"config_name":   session.ConfigName,
			"player_name":   session.PlayerName,
			"snapshot":      session.Snapshot,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessedAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"config_name": configName,
		"total_stops": totalStops,
		"sessions":    rows,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket disabled", http.StatusNotFound)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	snap, err := s.service.GetSnapshot(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, sessionID)
	s.hub.SendSnapshot(sessionID, snap)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

package service

import (
	"time"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/geometry"
)

// SessionInfo provides information about a tour session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	PlayerName     string             `json:"player_name,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	Snapshot       engine.Snapshot    `json:"snapshot"`
	TourConfig     *engine.TourConfig `json:"tour_config"`
}

// Stop reason codes reported by Drive.
const (
	StopReasonStopOpened    = "stop_opened"
	StopReasonStopOpen      = "stop_open"
	StopReasonFinished      = "finished"
	StopReasonTourCompleted = "tour_completed"
	StopReasonPaused        = "paused"
)

// DriveRequest runs a fixed number of frames with constant input.
type DriveRequest struct {
	Frames     int     `json:"frames"`
	DT         float64 `json:"dt"`
	Accelerate bool    `json:"accelerate"`
	Brake      bool    `json:"brake"`
}

// DriveResult contains the result of a drive call
type DriveResult struct {
	FramesExecuted  int             `json:"frames_executed"`
	RequestedFrames int             `json:"requested_frames"`
	Truncated       bool            `json:"truncated,omitempty"`
	Limit           int             `json:"limit,omitempty"`
	StartProgress   float64         `json:"start_progress"`
	EndProgress     float64         `json:"end_progress"`
	StoppedReason   string          `json:"stopped_reason,omitempty"`
	StopReasonCode  string          `json:"stop_reason_code,omitempty"`
	Snapshot        engine.Snapshot `json:"snapshot"`
	Events          []engine.Event  `json:"events"`
	Lap             *LapRecord      `json:"lap,omitempty"`
}

// StepResult is one live frame.
type StepResult struct {
	Snapshot engine.Snapshot `json:"snapshot"`
	Events   []engine.Event  `json:"events"`
	Lap      *LapRecord      `json:"lap,omitempty"`
}

// LapRecord is filed when a tour is completed.
type LapRecord struct {
	LapMS        int64  `json:"lap_ms"`
	LapTime      string `json:"lap_time"`
	Placement    int    `json:"placement"`
	PreviousBest int64  `json:"previous_best,omitempty"`
}

// StopResult is the open stop with the round of its active mini-game.
type StopResult struct {
	Stop   engine.StopView `json:"stop"`
	Game   any             `json:"game,omitempty"`
	Events []engine.Event  `json:"events,omitempty"`
}

// ActionArgs carries the indexes a mini-game move needs.
type ActionArgs struct {
	Index  int `json:"index"`
	Target int `json:"target"`
}

// StageActionRequest acts on one stage of the open stop. The content stage
// accepts "complete"; game stages accept "start", "restart" and the moves
// of their mini-game.
type StageActionRequest struct {
	StageID string     `json:"stage_id"`
	Action  string     `json:"action"`
	Args    ActionArgs `json:"args"`
}

// CloseResult reports whether the stop view closed.
type CloseResult struct {
	Closed   bool            `json:"closed"`
	Message  string          `json:"message,omitempty"`
	Snapshot engine.Snapshot `json:"snapshot"`
	Events   []engine.Event  `json:"events"`
	Lap      *LapRecord      `json:"lap,omitempty"`
}

// Recording actions.
const (
	RecordToggle = "toggle"
	RecordBegin  = "begin"
	RecordExtend = "extend"
	RecordEnd    = "end"
	RecordClear  = "clear"
)

// RecordingRequest drives the path-authoring tool. X and Y are world
// coordinates for begin and extend.
type RecordingRequest struct {
	Action string  `json:"action"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// RecordingResult reports the tool state after an action.
type RecordingResult struct {
	Enabled  bool                    `json:"enabled"`
	Accepted bool                    `json:"accepted"`
	Points   []geometry.ControlPoint `json:"points"`
	Snapshot engine.Snapshot         `json:"snapshot"`
}

// HistoryOptions configures event history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated event history
type HistoryResponse struct {
	Events      []engine.Event `json:"events"`
	TotalEvents int            `json:"total_events"`
	Page        int            `json:"page"`
	PageSize    int            `json:"page_size"`
	TotalPages  int            `json:"total_pages"`
	HasNext     bool           `json:"has_next"`
	HasPrevious bool           `json:"has_previous"`
}

// ConfigInfo provides information about a tour configuration
type ConfigInfo struct {
	Filename      string `json:"filename"`
	ConfigID      string `json:"config_id"` // The identifier to use for session creation
	Name          string `json:"name"`      // Display name
	Description   string `json:"description"`
	Language      string `json:"language,omitempty"`
	Stops         int    `json:"stops"`
	ControlPoints int    `json:"control_points"`
}

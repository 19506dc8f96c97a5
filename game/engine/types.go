package engine

import "github.com/wricardo/driving-tour/game/geometry"

// StageType distinguishes the content view from mini-game stages.
type StageType string

const (
	StageContent StageType = "content"
	StageGame    StageType = "game"

	// ContentStageID is the id of the first stage of every stop.
	ContentStageID  = "content"
	gameStagePrefix = "game:"
)

// Mini-game kinds understood by the bundled adapters.
const (
	KindMemory   = "memory"
	KindQuiz     = "quiz"
	KindSequence = "sequence"
	KindPuzzle   = "puzzle"
)

const (
	DefaultMaxSpeed       = 260.0
	DefaultAccel          = 220.0
	DefaultThrottleRise   = 1.4
	DefaultThrottleFall   = 2.2
	DefaultFriction       = 0.85
	DefaultStopRadius     = 45.0
	DefaultStopEdgeMargin = 40.0
	DefaultRecordSpacing  = 28.0
	DefaultMaxFrameDelta  = 0.033
	DefaultViewportWidth  = 1280.0
	DefaultViewportHeight = 720.0

	// ReverseSpeedFactor bounds reverse speed to a fraction of MaxSpeed.
	ReverseSpeedFactor = 0.6

	MaxDriveFrames = 600
	MaxHistory     = 1000
)

// PhysicsConfig tunes the progress integration.
type PhysicsConfig struct {
	MaxSpeed       float64 `json:"max_speed"`
	Accel          float64 `json:"accel"`
	ThrottleRise   float64 `json:"throttle_rise"`
	ThrottleFall   float64 `json:"throttle_fall"`
	Friction       float64 `json:"friction"`
	StopRadius     float64 `json:"stop_radius"`
	StopEdgeMargin float64 `json:"stop_edge_margin"`
	MaxFrameDelta  float64 `json:"max_frame_delta"`
}

// BackgroundConfig describes the image the track is drawn over. Only its
// natural size matters to the core, it decides the content frame.
type BackgroundConfig struct {
	Image  string  `json:"image,omitempty"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Fit    string  `json:"fit"`
}

// TrackConfig holds the authored path.
type TrackConfig struct {
	Margin         float64                 `json:"margin"`
	RecordSpacing  float64                 `json:"record_spacing"`
	ViewportWidth  float64                 `json:"viewport_width"`
	ViewportHeight float64                 `json:"viewport_height"`
	Background     BackgroundConfig        `json:"background"`
	ControlPoints  []geometry.ControlPoint `json:"control_points"`
}

// ContentConfig is the body of a stop's content stage.
type ContentConfig struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Video string `json:"video,omitempty"`
}

// GameConfig describes one mini-game. Fields beyond ID and Kind are kind-specific.
type GameConfig struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Question     string   `json:"question,omitempty"`
	Options      []string `json:"options,omitempty"`
	CorrectIndex int      `json:"correct_index,omitempty"`
	Steps        []string `json:"steps,omitempty"`
	Image        string   `json:"image,omitempty"`
	Size         int      `json:"size,omitempty"`
	Symbols      []string `json:"symbols,omitempty"`
}

// StopConfig is an authored waypoint. Distance is a hint used only for
// relative spacing along the path; stops without one are spread evenly.
type StopConfig struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Distance *float64      `json:"distance,omitempty"`
	Content  ContentConfig `json:"content"`
	Games    []GameConfig  `json:"games"`
}

// TourConfig is the tour definition loaded from JSON.
type TourConfig struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Language    string        `json:"language,omitempty"`
	Physics     PhysicsConfig `json:"physics"`
	Track       TrackConfig   `json:"track"`
	Stops       []StopConfig  `json:"stops"`
	Messages    Messages      `json:"messages"`
}

// Messages are the status lines shown to the driver.
type Messages struct {
	Welcome      string `json:"welcome"`
	StopOpened   string `json:"stop_opened"`
	StopComplete string `json:"stop_complete"`
	Finished     string `json:"finished"`
	Victory      string `json:"victory"`
}

// Stage is one ordered step of a stop.
type Stage struct {
	ID    string      `json:"id"`
	Type  StageType   `json:"type"`
	Title string      `json:"title"`
	Game  *GameConfig `json:"game,omitempty"`
}

// Input is the per-tick control state.
type Input struct {
	Accelerate bool `json:"accelerate"`
	Brake      bool `json:"brake"`
}

// StopProgress is the per-stop completion record.
type StopProgress struct {
	ContentDone bool            `json:"content_done"`
	GamesDone   map[string]bool `json:"games_done"`
}

// RecordingState is the path-authoring tool state.
type RecordingState struct {
	Enabled   bool                    `json:"enabled"`
	Points    []geometry.ControlPoint `json:"points"`
	IsDrawing bool                    `json:"is_drawing"`
	LastWorld *geometry.Point         `json:"last_world,omitempty"`
}

// RunState is everything that changes during a play-through.
type RunState struct {
	ConfigName string  `json:"config_name"`
	Progress   float64 `json:"progress"`
	Speed      float64 `json:"speed"`
	Throttle   float64 `json:"throttle"`
	Finished   bool    `json:"finished"`
	Paused     bool    `json:"paused"`
	ModalOpen  bool    `json:"modal_open"`
	Message    string  `json:"message"`

	Visited map[string]bool `json:"visited"`
	InRange map[string]bool `json:"in_range"`

	LapStarted   bool             `json:"lap_started"`
	LapStartMS   int64            `json:"lap_start_ms"`
	LapElapsedMS int64            `json:"lap_elapsed_ms"`
	StopTimes    map[string]int64 `json:"stop_times"`

	StopProgress    map[string]*StopProgress `json:"stop_progress"`
	ActiveStopID    string                   `json:"active_stop_id,omitempty"`
	ActiveStageID   string                   `json:"active_stage_id,omitempty"`
	CompletionShown map[string]bool          `json:"completion_shown"`
	TourCompleted   bool                     `json:"tour_completed"`

	ControlPoints  []geometry.ControlPoint `json:"control_points"`
	ViewportWidth  float64                 `json:"viewport_width"`
	ViewportHeight float64                 `json:"viewport_height"`
	Recording      RecordingState          `json:"recording"`

	// History and TotalEvents survive resets; CurrentEventsCount restarts
	// with every run.
	History            []Event `json:"history"`
	TotalEvents        int     `json:"total_events"`
	CurrentEventsCount int     `json:"current_events_count"`
	Resets             int     `json:"resets"`
}

package service

import (
	"context"
	"time"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/geometry"
	"github.com/wricardo/driving-tour/game/leaderboard"
	"github.com/wricardo/driving-tour/game/minigame"
)

// TourService defines all tour-related operations
type TourService interface {
	// Session Management
	CreateSession(ctx context.Context, configName, playerName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Driving
	Drive(ctx context.Context, sessionID string, req DriveRequest) (*DriveResult, error)
	SetInput(ctx context.Context, sessionID string, in engine.Input) error
	Step(ctx context.Context, sessionID string, dt float64) (*StepResult, error)
	SetPaused(ctx context.Context, sessionID string, paused *bool) (*engine.Snapshot, error)
	Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	Resize(ctx context.Context, sessionID string, width, height float64) (*engine.Snapshot, error)
	GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error)

	// Stops
	GetStop(ctx context.Context, sessionID string) (*StopResult, error)
	SelectStage(ctx context.Context, sessionID, stageID string) (*StopResult, error)
	StageAction(ctx context.Context, sessionID string, req StageActionRequest) (*StopResult, error)
	CloseStop(ctx context.Context, sessionID string) (*CloseResult, error)

	// Track authoring
	Record(ctx context.Context, sessionID string, req RecordingRequest) (*RecordingResult, error)
	GetTrack(ctx context.Context, sessionID string) ([]geometry.ControlPoint, error)

	// History
	GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.TourConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.TourConfig) error
	Leaderboard(ctx context.Context, configName string) ([]leaderboard.Entry, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, config *engine.TourConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, configID string, config *engine.TourConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles tour configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.TourConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.TourConfig
	DefaultName() string
	SaveConfig(name string, config *engine.TourConfig) error
}

// Leaderboard stores finished laps.
type Leaderboard interface {
	Record(tour, playerID, name string, lapMS int64) (placement int, prevBest int64, err error)
	Top(tour string) []leaderboard.Entry
}

// Session represents an active tour session
type Session struct {
	ID         string
	ConfigID   string
	PlayerName string
	Engine     *engine.TourEngine
	Config     *engine.TourConfig

	// Input is the held control state of the live loop.
	Input engine.Input
	// Games holds the running mini-game rounds, keyed by stop and stage.
	// Rounds are not persisted.
	Games map[string]minigame.Game

	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// GameKey identifies a mini-game round of a stop.
func GameKey(stopID, stageID string) string {
	return stopID + "/" + stageID
}

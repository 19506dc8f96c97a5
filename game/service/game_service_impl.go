package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/geometry"
	"github.com/wricardo/driving-tour/game/leaderboard"
	"github.com/wricardo/driving-tour/game/minigame"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrStageDone       = errors.New("stage already completed")
)

const (
	DefaultDriveDT     = 1.0 / 60
	DefaultHistorySize = 20
	MaxHistoryPage     = 100
)

// Option configures the tour service.
type Option func(*tourServiceImpl)

// WithGameOptions sets the clock and shuffling used for new mini-game rounds.
func WithGameOptions(opts minigame.Options) Option {
	return func(s *tourServiceImpl) {
		s.gameOpts = opts
	}
}

// tourServiceImpl implements TourService. One mutex serializes every
// session so transports only touch an engine between frames.
type tourServiceImpl struct {
	log      *slog.Logger
	sessions SessionManager
	configs  ConfigManager
	board    Leaderboard
	gameOpts minigame.Options
	mu       sync.Mutex
}

// NewTourService creates a new tour service. board may be nil.
func NewTourService(log *slog.Logger, sessions SessionManager, configs ConfigManager, board Leaderboard, opts ...Option) TourService {
	if log == nil {
		log = slog.Default()
	}
	s := &tourServiceImpl{
		log:      log,
		sessions: sessions,
		configs:  configs,
		board:    board,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *tourServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSessionNotFound, sessionID, err)
	}
	if sess.Games == nil {
		sess.Games = make(map[string]minigame.Game)
	}
	return sess, nil
}

// touch marks the session used and persists it. Persistence failures are
// logged, the in-memory session stays authoritative.
func (s *tourServiceImpl) touch(sess *Session) {
	_ = s.sessions.UpdateLastAccessed(sess.ID)
	if err := s.sessions.Save(sess.ID); err != nil {
		s.log.Warn("failed to save session", "session", sess.ID, "err", err)
	}
}

func (s *tourServiceImpl) info(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigID,
		PlayerName:     sess.PlayerName,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Snapshot:       sess.Engine.Snapshot(),
		TourConfig:     sess.Config,
	}
}

// CreateSession creates a new tour session
func (s *tourServiceImpl) CreateSession(ctx context.Context, configName, playerName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.TourConfig
	configID := strings.TrimSuffix(configName, ".json")
	if configID != "" {
		var err error
		config, err = s.configs.LoadConfig(configID)
		if err != nil {
			availableConfigs, listErr := s.configs.ListConfigs()
			if listErr == nil && len(availableConfigs) > 0 {
				ids := lo.Map(availableConfigs, func(c *ConfigInfo, _ int) string { return c.ConfigID })
				return nil, fmt.Errorf("failed to load config %s (available: %v): %w", configID, ids, err)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configID, err)
		}
	} else {
		config = s.configs.GetDefault()
		configID = s.configs.DefaultName()
	}

	sess, err := s.sessions.Create("", configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	sess.PlayerName = strings.TrimSpace(playerName)
	if sess.Games == nil {
		sess.Games = make(map[string]minigame.Game)
	}
	if err := s.sessions.Save(sess.ID); err != nil {
		s.log.Warn("failed to save session", "session", sess.ID, "err", err)
	}

	s.log.Info("session created", "session", sess.ID, "config", configID, "player", sess.PlayerName)
	return s.info(sess), nil
}

// GetSession retrieves session information
func (s *tourServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	_ = s.sessions.UpdateLastAccessed(sessionID)
	return s.info(sess), nil
}

// ListSessions returns all active sessions
func (s *tourServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return lo.Map(s.sessions.List(), func(sess *Session, _ int) *SessionInfo {
		return s.info(sess)
	}), nil
}

// DeleteSession removes a session
func (s *tourServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.log.Info("session deleted", "session", sessionID)
	return nil
}

// Drive runs up to MaxDriveFrames ticks with constant input. It stops
// early when a stop opens, at the finish or while paused.
func (s *tourServiceImpl) Drive(ctx context.Context, sessionID string, req DriveRequest) (*DriveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	e := sess.Engine
	state := e.GetState()

	frames := max(req.Frames, 1)
	dt := req.DT
	if dt <= 0 {
		dt = DefaultDriveDT
	}

	result := &DriveResult{
		RequestedFrames: req.Frames,
		StartProgress:   state.Progress,
		Events:          e.DrainEvents(),
	}
	if frames > engine.MaxDriveFrames {
		frames = engine.MaxDriveFrames
		result.Truncated = true
		result.Limit = engine.MaxDriveFrames
	}

	in := engine.Input{Accelerate: req.Accelerate, Brake: req.Brake}
	for i := 0; i < frames; i++ {
		if code, reason := blockedReason(state); code != "" {
			result.StopReasonCode, result.StoppedReason = code, reason
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		wasOpen := state.ModalOpen
		result.Events = append(result.Events, e.Tick(dt, in)...)
		result.FramesExecuted++

		if state.TourCompleted && lo.ContainsBy(result.Events, isTourCompleted) {
			result.StopReasonCode, result.StoppedReason = StopReasonTourCompleted, "tour completed"
			break
		}
		if state.ModalOpen && !wasOpen {
			result.StopReasonCode = StopReasonStopOpened
			result.StoppedReason = fmt.Sprintf("arrived at stop %s", state.ActiveStopID)
			break
		}
		if state.Finished {
			result.StopReasonCode, result.StoppedReason = StopReasonFinished, "reached the finish"
			break
		}
	}

	result.Lap = s.recordLap(sess, result.Events)
	result.EndProgress = state.Progress
	result.Snapshot = e.Snapshot()
	s.touch(sess)
	return result, nil
}

// blockedReason explains why a tick would be a no-op.
func blockedReason(state *engine.RunState) (string, string) {
	switch {
	case state.ModalOpen:
		return StopReasonStopOpen, fmt.Sprintf("stop %s is open", state.ActiveStopID)
	case state.Finished:
		return StopReasonFinished, "already at the finish"
	case state.Paused:
		return StopReasonPaused, "the run is paused"
	}
	return "", ""
}

func isTourCompleted(ev engine.Event) bool {
	return ev.Type == engine.EventTourCompleted
}

// recordLap files the lap time once the tour completes.
func (s *tourServiceImpl) recordLap(sess *Session, events []engine.Event) *LapRecord {
	if !lo.ContainsBy(events, isTourCompleted) {
		return nil
	}
	lapMS := sess.Engine.GetState().LapElapsedMS
	rec := &LapRecord{LapMS: lapMS, LapTime: engine.FormatLapTime(lapMS)}
	if s.board == nil {
		return rec
	}

	playerID, name := sess.ID, sess.PlayerName
	if name != "" {
		playerID = strings.ToLower(name)
	} else {
		name = sess.ID
	}
	placement, prev, err := s.board.Record(sess.ConfigID, playerID, name, lapMS)
	if err != nil {
		s.log.Error("failed to record lap", "session", sess.ID, "err", err)
	}
	rec.Placement, rec.PreviousBest = placement, prev
	s.log.Info("tour completed", "session", sess.ID, "config", sess.ConfigID, "lap", rec.LapTime, "placement", placement)
	return rec
}

// SetInput stores the held controls for the live loop.
func (s *tourServiceImpl) SetInput(ctx context.Context, sessionID string, in engine.Input) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return err
	}
	sess.Input = in
	return nil
}

// Step advances one live frame with the held input. It does not persist
// the session; the live loop saves on its own schedule.
func (s *tourServiceImpl) Step(ctx context.Context, sessionID string, dt float64) (*StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	events := append(sess.Engine.DrainEvents(), sess.Engine.Tick(dt, sess.Input)...)
	return &StepResult{
		Snapshot: sess.Engine.Snapshot(),
		Events:   events,
		Lap:      s.recordLap(sess, events),
	}, nil
}

// SetPaused pauses or resumes the run. A nil paused toggles.
func (s *tourServiceImpl) SetPaused(ctx context.Context, sessionID string, paused *bool) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if paused == nil {
		sess.Engine.TogglePause()
	} else {
		sess.Engine.SetPaused(*paused)
	}
	snap := sess.Engine.Snapshot()
	s.touch(sess)
	return &snap, nil
}

// Reset starts a new run on the current path
func (s *tourServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Engine.Reset()
	sess.Input = engine.Input{}
	s.syncGames(sess)

	snap := sess.Engine.Snapshot()
	s.touch(sess)
	return &snap, nil
}

// Resize rebuilds the path for a new viewport.
func (s *tourServiceImpl) Resize(ctx context.Context, sessionID string, width, height float64) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Engine.Resize(width, height) {
		return nil, fmt.Errorf("%w: viewport %gx%g", ErrInvalidRequest, width, height)
	}
	snap := sess.Engine.Snapshot()
	s.touch(sess)
	return &snap, nil
}

// GetSnapshot returns the current frame
func (s *tourServiceImpl) GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	snap := sess.Engine.Snapshot()
	return &snap, nil
}

// stopResult builds the open stop view with its active round. Resolving
// the view may move the active stage, so callers hold the write lock.
func (s *tourServiceImpl) stopResult(sess *Session) (*StopResult, error) {
	view, err := sess.Engine.ActiveStopView()
	if err != nil {
		return nil, err
	}
	res := &StopResult{Stop: view}
	if g, ok := sess.Games[GameKey(view.ID, view.ActiveStage)]; ok {
		res.Game = g.View()
	}
	res.Events = sess.Engine.DrainEvents()
	return res, nil
}

// GetStop returns the open stop.
func (s *tourServiceImpl) GetStop(ctx context.Context, sessionID string) (*StopResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.stopResult(sess)
}

// SelectStage makes an unlocked stage of the open stop active.
func (s *tourServiceImpl) SelectStage(ctx context.Context, sessionID, stageID string) (*StopResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Engine.SelectStage(stageID); err != nil {
		return nil, fmt.Errorf("failed to select stage %s: %w", stageID, err)
	}
	s.touch(sess)
	return s.stopResult(sess)
}

// StageAction completes the content stage or plays the mini-game of a game
// stage. A game stage gets a new round on "start", "restart" or the first
// move; the round reports completion back to the engine.
func (s *tourServiceImpl) StageAction(ctx context.Context, sessionID string, req StageActionRequest) (*StopResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	e := sess.Engine
	stop, ok := e.ActiveStop()
	if !ok {
		return nil, engine.ErrNoActiveStop
	}

	stageID := req.StageID
	if stageID == "" {
		stageID = e.GetState().ActiveStageID
	}
	stages := engine.BuildStages(stop, nil)
	idx := lo.IndexOf(lo.Map(stages, func(st engine.Stage, _ int) string { return st.ID }), stageID)
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s", engine.ErrStageNotFound, stageID)
	}
	if !e.IsStageUnlocked(stop.ID, stages, idx) {
		return nil, fmt.Errorf("%w: %s", engine.ErrStageLocked, stageID)
	}
	if e.GetState().ActiveStageID != stageID {
		if err := e.SelectStage(stageID); err != nil {
			return nil, err
		}
	}

	stage := stages[idx]
	if stage.Type == engine.StageContent {
		if err := s.completeContent(sess, stop.ID, req.Action); err != nil {
			return nil, err
		}
	} else if err := s.playGame(sess, stop.ID, stage, req); err != nil {
		return nil, err
	}

	s.touch(sess)
	return s.stopResult(sess)
}

func (s *tourServiceImpl) completeContent(sess *Session, stopID, action string) error {
	if action != "complete" && action != "" {
		return fmt.Errorf("%w: %q", minigame.ErrUnknownAction, action)
	}
	if sess.Engine.IsStageCompleted(stopID, engine.Stage{ID: engine.ContentStageID, Type: engine.StageContent}) {
		return fmt.Errorf("%w: %s", ErrStageDone, engine.ContentStageID)
	}
	sess.Engine.CompleteStage(stopID, engine.ContentStageID)
	return nil
}

func (s *tourServiceImpl) playGame(sess *Session, stopID string, stage engine.Stage, req StageActionRequest) error {
	key := GameKey(stopID, stage.ID)
	g, running := sess.Games[key]

	if !running || req.Action == "start" || req.Action == "restart" {
		if running && req.Action == "start" {
			return nil
		}
		round, err := minigame.New(*stage.Game, s.gameOpts)
		if err != nil {
			return err
		}
		if err := sess.Engine.StartStage(stage.ID, round); err != nil {
			return err
		}
		sess.Games[key] = round
		g = round
		if req.Action == "start" || req.Action == "restart" {
			return nil
		}
	}

	return g.Apply(minigame.Move{Action: req.Action, Index: req.Args.Index, Target: req.Args.Target})
}

// CloseStop closes the open stop view once the stop is complete.
func (s *tourServiceImpl) CloseStop(ctx context.Context, sessionID string) (*CloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	e := sess.Engine
	if !e.GetState().ModalOpen {
		return nil, engine.ErrNoActiveStop
	}

	res := &CloseResult{Closed: e.CloseStop()}
	if !res.Closed {
		res.Message = "complete every stage before closing the stop"
	}
	s.syncGames(sess)
	res.Events = e.DrainEvents()
	res.Lap = s.recordLap(sess, res.Events)
	res.Snapshot = e.Snapshot()
	s.touch(sess)
	return res, nil
}

// syncGames drops rounds that no longer belong to the open stop.
func (s *tourServiceImpl) syncGames(sess *Session) {
	state := sess.Engine.GetState()
	prefix := GameKey(state.ActiveStopID, "")
	for key := range sess.Games {
		if !state.ModalOpen || !strings.HasPrefix(key, prefix) {
			delete(sess.Games, key)
		}
	}
}

// Record drives the path-authoring tool.
func (s *tourServiceImpl) Record(ctx context.Context, sessionID string, req RecordingRequest) (*RecordingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	e := sess.Engine
	p := geometry.Point{X: req.X, Y: req.Y}

	accepted := true
	switch req.Action {
	case RecordToggle:
		e.ToggleRecording()
		s.syncGames(sess)
	case RecordBegin:
		accepted = e.BeginStroke(p)
	case RecordExtend:
		accepted = e.ExtendStroke(p)
	case RecordEnd:
		e.EndStroke()
	case RecordClear:
		accepted = e.ClearRecording()
	default:
		return nil, fmt.Errorf("%w: unknown recording action %q", ErrInvalidRequest, req.Action)
	}
	e.DrainEvents()

	s.touch(sess)
	return &RecordingResult{
		Enabled:  e.GetState().Recording.Enabled,
		Accepted: accepted,
		Points:   e.ExportTrack(),
		Snapshot: e.Snapshot(),
	}, nil
}

// GetTrack exports the control points of the path, or the capture while
// recording.
func (s *tourServiceImpl) GetTrack(ctx context.Context, sessionID string) ([]geometry.ControlPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.ExportTrack(), nil
}

// GetHistory returns paginated event history
func (s *tourServiceImpl) GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Engine.GetHistory()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultHistorySize
	}
	if opts.Limit > MaxHistoryPage {
		opts.Limit = MaxHistoryPage
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := min((opts.Page-1)*opts.Limit, total)
	end := min(start+opts.Limit, total)

	events := make([]engine.Event, 0, end-start)
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= total-end; i-- {
			events = append(events, history[i])
		}
	} else {
		events = append(events, history[start:end]...)
	}

	return &HistoryResponse{
		Events:      events,
		TotalEvents: total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available configurations
func (s *tourServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific configuration
func (s *tourServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.TourConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a configuration
func (s *tourServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.TourConfig) error {
	if err := s.configs.SaveConfig(configName, config); err != nil {
		return err
	}
	s.log.Info("config saved", "config", configName)
	return nil
}

// Leaderboard returns the top laps of a tour.
func (s *tourServiceImpl) Leaderboard(ctx context.Context, configName string) ([]leaderboard.Entry, error) {
	if s.board == nil {
		return []leaderboard.Entry{}, nil
	}
	return s.board.Top(strings.TrimSuffix(configName, ".json")), nil
}

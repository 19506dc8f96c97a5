package engine

import (
	"github.com/wricardo/driving-tour/game/geometry"
	"github.com/wricardo/driving-tour/game/locale"
)

// StopMarker is the renderer's view of one stop.
type StopMarker struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Index     int            `json:"index"`
	Distance  float64        `json:"distance"`
	Placed    bool           `json:"placed"`
	Position  geometry.Point `json:"position"`
	Visited   bool           `json:"visited"`
	Locked    bool           `json:"locked"`
	Completed bool           `json:"completed"`
	Active    bool           `json:"active"`
	InRange   bool           `json:"in_range"`
	VisitMS   *int64         `json:"visit_ms,omitempty"`
	Status    string         `json:"status"`
}

// RecordingView is the renderer's view of the authoring tool.
type RecordingView struct {
	Enabled   bool             `json:"enabled"`
	IsDrawing bool             `json:"is_drawing"`
	Points    []geometry.Point `json:"points"`
}

// Snapshot is a read-only copy of everything a frame needs.
type Snapshot struct {
	ConfigName    string           `json:"config_name"`
	Sample        geometry.Sample  `json:"sample"`
	Progress      float64          `json:"progress"`
	Speed         float64          `json:"speed"`
	Throttle      float64          `json:"throttle"`
	TotalLength   float64          `json:"total_length"`
	Paused        bool             `json:"paused"`
	Finished      bool             `json:"finished"`
	ModalOpen     bool             `json:"modal_open"`
	TourCompleted bool             `json:"tour_completed"`
	LapMS         int64            `json:"lap_ms"`
	LapTime       string           `json:"lap_time"`
	ActiveStopID  string           `json:"active_stop_id,omitempty"`
	Message       string           `json:"message"`
	StopsDone     int              `json:"stops_done"`
	NextStopID    string           `json:"next_stop_id,omitempty"`
	NextStopIn    *float64         `json:"next_stop_in,omitempty"`
	Stops         []StopMarker     `json:"stops"`
	Frame         geometry.Frame   `json:"frame"`
	Track         []geometry.Point `json:"track"`
	Recording     RecordingView    `json:"recording"`
}

// StageView is one row of an open stop.
type StageView struct {
	Stage
	Index    int    `json:"index"`
	Done     bool   `json:"done"`
	Unlocked bool   `json:"unlocked"`
	Active   bool   `json:"active"`
	Status   string `json:"status"`
	Action   string `json:"action"`
}

// StopView is the stop/stage UI contract: ordered stages with their status.
type StopView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Index       int           `json:"index"`
	Content     ContentConfig `json:"content"`
	Stages      []StageView   `json:"stages"`
	ActiveStage string        `json:"active_stage,omitempty"`
	Completed   bool          `json:"completed"`
	Unlocked    bool          `json:"unlocked"`
	Open        bool          `json:"open"`
	DoneCount   int           `json:"done_count"`
	Progress    string        `json:"progress"`
	CloseLabel  string        `json:"close_label"`
	CanClose    bool          `json:"can_close"`
	FinishLabel string        `json:"finish_label,omitempty"`
}

func (e *TourEngine) labels() *locale.Labels {
	return locale.For(e.config.Language)
}

// Snapshot captures the current frame.
func (e *TourEngine) Snapshot() Snapshot {
	s := e.state
	labels := e.labels()

	snap := Snapshot{
		ConfigName:    s.ConfigName,
		Sample:        e.path.SampleAt(s.Progress),
		Progress:      s.Progress,
		Speed:         s.Speed,
		Throttle:      s.Throttle,
		TotalLength:   e.path.TotalLength,
		Paused:        s.Paused,
		Finished:      s.Finished,
		ModalOpen:     s.ModalOpen,
		TourCompleted: s.TourCompleted,
		LapMS:         s.LapElapsedMS,
		LapTime:       FormatLapTime(s.LapElapsedMS),
		ActiveStopID:  s.ActiveStopID,
		Message:       s.Message,
		Stops:         make([]StopMarker, 0, len(e.config.Stops)),
		Frame:         e.frame,
		Track:         append([]geometry.Point{}, e.path.Points...),
		Recording: RecordingView{
			Enabled:   s.Recording.Enabled,
			IsDrawing: s.Recording.IsDrawing,
			Points:    make([]geometry.Point, 0, len(s.Recording.Points)),
		},
	}

	for i := range e.config.Stops {
		stop := &e.config.Stops[i]
		p := e.progressOf(stop.ID)
		unlocked := e.isStopUnlockedAt(i)
		completed := e.IsStopCompleted(stop.ID)

		m := StopMarker{
			ID:        stop.ID,
			Name:      stopName(stop, i, labels),
			Index:     i,
			Visited:   s.Visited[stop.ID],
			Locked:    !unlocked,
			Completed: completed,
			Active:    s.ModalOpen && s.ActiveStopID == stop.ID,
			InRange:   s.InRange[stop.ID],
			Status:    labels.StopStatus(unlocked, completed, p.ContentDone, len(p.GamesDone), len(stop.Games)),
		}
		if d, ok := e.stopDistances[stop.ID]; ok {
			m.Distance = d
			m.Placed = true
			m.Position = e.path.SampleAt(d).Position
		}
		if t, ok := s.StopTimes[stop.ID]; ok {
			m.VisitMS = &t
		}
		snap.Stops = append(snap.Stops, m)
	}

	snap.StopsDone = e.CountCompletedStops()
	if next, ok := e.NextStop(); ok {
		snap.NextStopID = next.ID
		if d, ok := e.DistanceToNextStop(); ok {
			snap.NextStopIn = &d
		}
	}

	for _, cp := range s.Recording.Points {
		snap.Recording.Points = append(snap.Recording.Points, geometry.ToWorld(cp, e.frame, e.config.Track.Margin))
	}

	return snap
}

// StopView describes a stop's stages. For the open stop the active stage is
// resolved, which also updates the remembered active stage.
func (e *TourEngine) StopView(stopID string) (StopView, error) {
	i := e.StopIndex(stopID)
	if i < 0 {
		return StopView{}, ErrStopNotFound
	}
	stop := &e.config.Stops[i]
	labels := e.labels()
	stages := BuildStages(stop, labels)
	open := e.state.ModalOpen && e.state.ActiveStopID == stop.ID

	var active *Stage
	if open {
		active = e.ResolveActiveStage(stop, stages)
	}

	completed := e.IsStopCompleted(stop.ID)
	v := StopView{
		ID:         stop.ID,
		Name:       stopName(stop, i, labels),
		Index:      i,
		Content:    stop.Content,
		Stages:     make([]StageView, 0, len(stages)),
		Completed:  completed,
		Unlocked:   e.isStopUnlockedAt(i),
		Open:       open,
		CloseLabel: labels.CloseLabel(completed),
		CanClose:   open && completed,
	}
	if active != nil {
		v.ActiveStage = active.ID
	}

	for j, st := range stages {
		done := e.IsStageCompleted(stop.ID, st)
		unlocked := e.IsStageUnlocked(stop.ID, stages, j)
		if done {
			v.DoneCount++
		}
		v.Stages = append(v.Stages, StageView{
			Stage:    st,
			Index:    j,
			Done:     done,
			Unlocked: unlocked,
			Active:   active != nil && active.ID == st.ID,
			Status:   labels.StageStatus(done, unlocked),
			Action:   labels.StageAction(st.Type == StageContent, done),
		})
	}
	v.Progress = labels.StageProgress(v.DoneCount, len(stages), completed)
	if completed && i == len(e.config.Stops)-1 {
		v.FinishLabel = labels.FinishTour()
	}
	return v, nil
}

// ActiveStopView is StopView for the open stop.
func (e *TourEngine) ActiveStopView() (StopView, error) {
	stop, ok := e.ActiveStop()
	if !ok {
		return StopView{}, ErrNoActiveStop
	}
	return e.StopView(stop.ID)
}

func stopName(stop *StopConfig, i int, labels *locale.Labels) string {
	if stop.Name != "" {
		return stop.Name
	}
	return labels.StopName(i)
}

package engine

import (
	"fmt"
	"time"

	"github.com/wricardo/driving-tour/game/geometry"
)

// Clock returns the current wall time. The lap timer and event timestamps
// read it; tests inject a fake.
type Clock func() time.Time

// Option configures a TourEngine.
type Option func(*TourEngine)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *TourEngine) {
		if c != nil {
			e.now = c
		}
	}
}

// TourEngine owns one play-through: the run state, the derived path and
// the stop positions on it. It is not safe for concurrent use.
type TourEngine struct {
	config *TourConfig
	state  *RunState

	path           *geometry.Path
	frame          geometry.Frame
	stopDistances  map[string]float64
	finishDistance float64

	now     Clock
	pending []Event
}

// NewEngine validates config and builds a fresh run.
func NewEngine(config *TourConfig, opts ...Option) (*TourEngine, error) {
	if err := ValidateTourConfig(config); err != nil {
		return nil, err
	}

	e := &TourEngine{
		config: withDefaults(config),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state = InitRunState(e.config)
	e.rebuild()
	return e, nil
}

// GetState returns the live run state.
func (e *TourEngine) GetState() *RunState {
	return e.state
}

// SetState installs a previously persisted run and rebuilds the path from it.
func (e *TourEngine) SetState(state *RunState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	ensureMaps(state)
	if state.ViewportWidth <= 0 {
		state.ViewportWidth = e.config.Track.ViewportWidth
	}
	if state.ViewportHeight <= 0 {
		state.ViewportHeight = e.config.Track.ViewportHeight
	}
	e.state = state
	e.rebuild()
	return nil
}

// GetConfig returns the tour with defaults applied.
func (e *TourEngine) GetConfig() *TourConfig {
	return e.config
}

// Path returns the current path. It is replaced, never mutated, on rebuild.
func (e *TourEngine) Path() *geometry.Path {
	return e.path
}

// Frame returns the content frame control points are mapped into.
func (e *TourEngine) Frame() geometry.Frame {
	return e.frame
}

// FinishDistance is the arc length at which the run finishes.
func (e *TourEngine) FinishDistance() float64 {
	return e.finishDistance
}

// StopDistance returns the arc-length position of a stop, if it has one.
func (e *TourEngine) StopDistance(stopID string) (float64, bool) {
	d, ok := e.stopDistances[stopID]
	return d, ok
}

// rebuild recomputes the frame, the path and the stop positions.
func (e *TourEngine) rebuild() {
	bg := e.config.Track.Background
	e.frame = geometry.FitFrame(e.state.ViewportWidth, e.state.ViewportHeight, bg.Width, bg.Height, bg.Fit)
	e.path = geometry.Build(e.state.ControlPoints, e.frame, e.config.Track.Margin)
	e.finishDistance = e.path.TotalLength
	e.stopDistances = ComputeStopDistances(e.config.Stops, e.path.TotalLength, e.finishDistance, e.config.Physics.StopEdgeMargin)
}

// Reset starts a new run on the current path. History and the recording
// tool survive.
func (e *TourEngine) Reset() *RunState {
	prev := e.state

	e.state = InitRunState(e.config)
	e.state.ControlPoints = append([]geometry.ControlPoint{}, prev.ControlPoints...)
	e.state.ViewportWidth = prev.ViewportWidth
	e.state.ViewportHeight = prev.ViewportHeight
	e.state.Recording = prev.Recording
	e.state.History = prev.History
	e.state.TotalEvents = prev.TotalEvents
	e.state.Resets = prev.Resets + 1

	e.rebuild()
	e.emit(EventReset, "", "", e.config.Messages.Welcome)
	return e.state
}

// SetPaused pauses or resumes integration.
func (e *TourEngine) SetPaused(paused bool) {
	if e.state.Paused == paused {
		return
	}
	e.state.Paused = paused
	if paused {
		e.emit(EventPaused, "", "", "")
	} else {
		e.emit(EventResumed, "", "", "")
	}
}

// TogglePause flips the pause flag and returns the new value.
func (e *TourEngine) TogglePause() bool {
	e.SetPaused(!e.state.Paused)
	return e.state.Paused
}

// Resize changes the viewport and rebuilds the path. Non-positive sizes are ignored.
func (e *TourEngine) Resize(width, height float64) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	e.state.ViewportWidth = width
	e.state.ViewportHeight = height
	e.rebuild()
	e.emit(EventResized, "", "", "")
	return true
}

// SetControlPoints replaces the path and resets the run.
func (e *TourEngine) SetControlPoints(points []geometry.ControlPoint) {
	e.state.ControlPoints = append([]geometry.ControlPoint{}, points...)
	e.Reset()
}

// IsFinished reports whether the car reached the end of the path.
func (e *TourEngine) IsFinished() bool {
	return e.state.Finished
}

// IsTourCompleted reports whether the terminal completion was signalled.
func (e *TourEngine) IsTourCompleted() bool {
	return e.state.TourCompleted
}

func ensureMaps(s *RunState) {
	if s.Visited == nil {
		s.Visited = make(map[string]bool)
	}
	if s.InRange == nil {
		s.InRange = make(map[string]bool)
	}
	if s.StopTimes == nil {
		s.StopTimes = make(map[string]int64)
	}
	if s.StopProgress == nil {
		s.StopProgress = make(map[string]*StopProgress)
	}
	if s.CompletionShown == nil {
		s.CompletionShown = make(map[string]bool)
	}
	if s.History == nil {
		s.History = []Event{}
	}
	for _, p := range s.StopProgress {
		if p != nil && p.GamesDone == nil {
			p.GamesDone = make(map[string]bool)
		}
	}
}

package engine

import "github.com/wricardo/driving-tour/game/geometry"

// ToggleRecording switches the path-authoring tool. Turning it on clears the
// capture and pauses the run. Turning it off with at least two captured
// points replaces the path and resets the run.
func (e *TourEngine) ToggleRecording() bool {
	r := &e.state.Recording
	r.Enabled = !r.Enabled
	r.IsDrawing = false
	r.LastWorld = nil

	if r.Enabled {
		r.Points = []geometry.ControlPoint{}
		e.emit(EventRecording, "", "", "")
	} else if len(r.Points) >= 2 {
		points := r.Points
		e.SetControlPoints(points)
		e.emit(EventTrackRecorded, "", "", "")
	}

	e.state.Paused = e.state.Recording.Enabled
	return e.state.Recording.Enabled
}

// BeginStroke starts capturing at a world point.
func (e *TourEngine) BeginStroke(p geometry.Point) bool {
	r := &e.state.Recording
	if !r.Enabled {
		return false
	}
	r.IsDrawing = true
	return e.addRecordPoint(p)
}

// ExtendStroke adds a point while a stroke is active.
func (e *TourEngine) ExtendStroke(p geometry.Point) bool {
	r := &e.state.Recording
	if !r.Enabled || !r.IsDrawing {
		return false
	}
	return e.addRecordPoint(p)
}

// EndStroke stops capturing until the next BeginStroke.
func (e *TourEngine) EndStroke() {
	if e.state.Recording.Enabled {
		e.state.Recording.IsDrawing = false
	}
}

// ClearRecording drops the captured points.
func (e *TourEngine) ClearRecording() bool {
	r := &e.state.Recording
	if !r.Enabled {
		return false
	}
	r.Points = []geometry.ControlPoint{}
	r.LastWorld = nil
	return true
}

// ExportTrack returns the captured points while recording, otherwise the
// control points of the active path.
func (e *TourEngine) ExportTrack() []geometry.ControlPoint {
	if e.state.Recording.Enabled {
		return append([]geometry.ControlPoint{}, e.state.Recording.Points...)
	}
	return append([]geometry.ControlPoint{}, e.state.ControlPoints...)
}

// addRecordPoint keeps samples at least RecordSpacing apart in world units.
func (e *TourEngine) addRecordPoint(p geometry.Point) bool {
	r := &e.state.Recording
	if r.LastWorld != nil && r.LastWorld.Dist(p) < e.config.Track.RecordSpacing {
		return false
	}
	last := p
	r.LastWorld = &last
	r.Points = append(r.Points, geometry.Normalize(p, e.frame, e.config.Track.Margin))
	return true
}

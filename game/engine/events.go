package engine

import (
	"github.com/google/uuid"
)

// EventType names a state transition worth reporting to clients.
type EventType string

const (
	EventLapStarted     EventType = "lap_started"
	EventStopOpened     EventType = "stop_opened"
	EventStopClosed     EventType = "stop_closed"
	EventStageSelected  EventType = "stage_selected"
	EventStageCompleted EventType = "stage_completed"
	EventStopCompleted  EventType = "stop_completed"
	EventFinished       EventType = "finished"
	EventTourCompleted  EventType = "tour_completed"
	EventPaused         EventType = "paused"
	EventResumed        EventType = "resumed"
	EventReset          EventType = "reset"
	EventRecording      EventType = "recording_started"
	EventTrackRecorded  EventType = "track_recorded"
	EventResized        EventType = "resized"
)

// Event is one entry of the run history.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	StopID    string    `json:"stop_id,omitempty"`
	StageID   string    `json:"stage_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Progress  float64   `json:"progress"`
	LapMS     int64     `json:"lap_ms"`
	Timestamp int64     `json:"timestamp"`
	Number    int       `json:"number"`
}

// emit records an event in the history and queues it for DrainEvents.
func (e *TourEngine) emit(typ EventType, stopID, stageID, message string) Event {
	s := e.state
	s.TotalEvents++
	s.CurrentEventsCount++

	ev := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		StopID:    stopID,
		StageID:   stageID,
		Message:   message,
		Progress:  s.Progress,
		LapMS:     s.LapElapsedMS,
		Timestamp: e.now().UnixMilli(),
		Number:    s.TotalEvents,
	}

	s.History = append(s.History, ev)
	if over := len(s.History) - MaxHistory; over > 0 {
		s.History = append([]Event(nil), s.History[over:]...)
	}
	if message != "" {
		s.Message = message
	}

	e.pending = append(e.pending, ev)
	return ev
}

// DrainEvents returns the events emitted since the previous call.
func (e *TourEngine) DrainEvents() []Event {
	out := e.pending
	e.pending = nil
	return out
}

// GetHistory returns the cumulative event history.
func (e *TourEngine) GetHistory() []Event {
	return e.state.History
}

package engine

import (
	"errors"
	"strings"

	"github.com/wricardo/driving-tour/game/locale"
)

var (
	ErrNoActiveStop  = errors.New("no stop is open")
	ErrStopNotFound  = errors.New("stop not found")
	ErrStageNotFound = errors.New("stage not found")
	ErrStageLocked   = errors.New("stage is locked")
	ErrNotGameStage  = errors.New("stage is not a mini-game")
)

// BuildStages returns the ordered stages of a stop: the content view first,
// then one stage per mini-game.
func BuildStages(stop *StopConfig, labels *locale.Labels) []Stage {
	title := stop.Content.Title
	if title == "" && labels != nil {
		title = labels.ContentTitle()
	}

	stages := make([]Stage, 0, len(stop.Games)+1)
	stages = append(stages, Stage{ID: ContentStageID, Type: StageContent, Title: title})
	for i := range stop.Games {
		g := &stop.Games[i]
		stages = append(stages, Stage{ID: gameStagePrefix + g.ID, Type: StageGame, Title: g.Title, Game: g})
	}
	return stages
}

// GameIDFromStage strips the stage prefix, returning "" for non-game stages.
func GameIDFromStage(stageID string) string {
	id, ok := strings.CutPrefix(stageID, gameStagePrefix)
	if !ok {
		return ""
	}
	return id
}

func stageIndex(stages []Stage, stageID string) int {
	for i := range stages {
		if stages[i].ID == stageID {
			return i
		}
	}
	return -1
}

// StopIndex returns the authoring position of a stop or -1.
func (e *TourEngine) StopIndex(stopID string) int {
	for i := range e.config.Stops {
		if e.config.Stops[i].ID == stopID {
			return i
		}
	}
	return -1
}

// FindStop returns the stop with the given id.
func (e *TourEngine) FindStop(stopID string) (*StopConfig, bool) {
	i := e.StopIndex(stopID)
	if i < 0 {
		return nil, false
	}
	return &e.config.Stops[i], true
}

// stopProgress returns the completion record of a stop, creating it on first use.
func (e *TourEngine) stopProgress(stopID string) *StopProgress {
	p := e.state.StopProgress[stopID]
	if p == nil {
		p = &StopProgress{}
		e.state.StopProgress[stopID] = p
	}
	if p.GamesDone == nil {
		p.GamesDone = make(map[string]bool)
	}
	return p
}

// progressOf reads the completion record of a stop without creating it.
func (e *TourEngine) progressOf(stopID string) StopProgress {
	if p := e.state.StopProgress[stopID]; p != nil {
		return *p
	}
	return StopProgress{}
}

// IsStopCompleted is true iff the content stage and every game are done.
func (e *TourEngine) IsStopCompleted(stopID string) bool {
	stop, ok := e.FindStop(stopID)
	if !ok {
		return false
	}
	p := e.progressOf(stopID)
	return p.ContentDone && len(p.GamesDone) >= len(stop.Games)
}

// IsStopUnlocked is true for the first stop and for any stop whose
// predecessor is completed.
func (e *TourEngine) IsStopUnlocked(stopID string) bool {
	return e.isStopUnlockedAt(e.StopIndex(stopID))
}

func (e *TourEngine) isStopUnlockedAt(i int) bool {
	if i <= 0 {
		return true
	}
	return e.IsStopCompleted(e.config.Stops[i-1].ID)
}

// AllStopsCompleted is true when there are no stops or all are completed.
func (e *TourEngine) AllStopsCompleted() bool {
	for i := range e.config.Stops {
		if !e.IsStopCompleted(e.config.Stops[i].ID) {
			return false
		}
	}
	return true
}

// IsStageCompleted reports the done flag of one stage.
func (e *TourEngine) IsStageCompleted(stopID string, stage Stage) bool {
	p := e.progressOf(stopID)
	if stage.Type == StageContent {
		return p.ContentDone
	}
	return stage.Game != nil && p.GamesDone[stage.Game.ID]
}

// IsStageUnlocked is true for the first stage and for any stage whose
// predecessor is done.
func (e *TourEngine) IsStageUnlocked(stopID string, stages []Stage, index int) bool {
	if index == 0 {
		return true
	}
	if index < 0 || index >= len(stages) {
		return false
	}
	return e.IsStageCompleted(stopID, stages[index-1])
}

// ResolveActiveStage picks the stage shown for stop: the first incomplete
// one (or the last when all are done), unless the remembered active stage
// is unlocked. The result is written back as the remembered stage.
func (e *TourEngine) ResolveActiveStage(stop *StopConfig, stages []Stage) *Stage {
	if len(stages) == 0 {
		e.state.ActiveStageID = ""
		return nil
	}

	target := -1
	for i := range stages {
		if !e.IsStageCompleted(stop.ID, stages[i]) {
			target = i
			break
		}
	}
	if target == -1 {
		target = len(stages) - 1
	}

	if stored := stageIndex(stages, e.state.ActiveStageID); stored != -1 && e.IsStageUnlocked(stop.ID, stages, stored) {
		target = stored
	}

	e.state.ActiveStageID = stages[target].ID
	return &stages[target]
}

// ActiveStop returns the stop whose view is open.
func (e *TourEngine) ActiveStop() (*StopConfig, bool) {
	if !e.state.ModalOpen || e.state.ActiveStopID == "" {
		return nil, false
	}
	return e.FindStop(e.state.ActiveStopID)
}

func (e *TourEngine) openStop(stop *StopConfig) {
	e.state.ModalOpen = true
	e.state.ActiveStopID = stop.ID
	e.state.ActiveStageID = ""

	msg := e.config.Messages.StopOpened
	if msg == "" {
		msg = stop.Name
	}
	e.emit(EventStopOpened, stop.ID, "", msg)
}

// CloseStop closes the open stop view. It is refused, leaving the view open,
// while that stop is incomplete. Closing may complete the tour.
func (e *TourEngine) CloseStop() bool {
	s := e.state
	if !s.ModalOpen {
		return false
	}
	if s.ActiveStopID != "" && !e.IsStopCompleted(s.ActiveStopID) {
		return false
	}

	stopID := s.ActiveStopID
	s.ModalOpen = false
	s.ActiveStopID = ""
	s.ActiveStageID = ""
	e.emit(EventStopClosed, stopID, "", "")

	e.checkTourCompleted()
	return true
}

// SelectStage makes an unlocked stage of the open stop active.
func (e *TourEngine) SelectStage(stageID string) error {
	stop, ok := e.ActiveStop()
	if !ok {
		return ErrNoActiveStop
	}
	stages := BuildStages(stop, nil)
	idx := stageIndex(stages, stageID)
	if idx == -1 {
		return ErrStageNotFound
	}
	if !e.IsStageUnlocked(stop.ID, stages, idx) {
		return ErrStageLocked
	}

	e.state.ActiveStageID = stageID
	e.emit(EventStageSelected, stop.ID, stageID, "")
	return nil
}

// CompleteStage marks a stage of the open stop done and moves the active
// pointer to the next stage. It returns false, changing nothing, when the
// stop is not open, the stage is locked or already done. The first time the
// stop becomes complete a stop_completed event is emitted.
func (e *TourEngine) CompleteStage(stopID, stageID string) bool {
	stop, ok := e.ActiveStop()
	if !ok || stop.ID != stopID {
		return false
	}
	stages := BuildStages(stop, nil)
	idx := stageIndex(stages, stageID)
	if idx == -1 || !e.IsStageUnlocked(stop.ID, stages, idx) {
		return false
	}
	if e.IsStageCompleted(stop.ID, stages[idx]) {
		return false
	}

	p := e.stopProgress(stop.ID)
	if stages[idx].Type == StageContent {
		p.ContentDone = true
	} else {
		p.GamesDone[stages[idx].Game.ID] = true
	}
	e.emit(EventStageCompleted, stop.ID, stageID, "")

	if idx+1 < len(stages) {
		e.state.ActiveStageID = stages[idx+1].ID
	}
	e.ResolveActiveStage(stop, stages)

	if e.IsStopCompleted(stop.ID) && !e.state.CompletionShown[stop.ID] {
		e.state.CompletionShown[stop.ID] = true
		e.emit(EventStopCompleted, stop.ID, "", e.config.Messages.StopComplete)
	}
	return true
}

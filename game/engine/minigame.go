package engine

import "fmt"

// MiniGame is a completion-reporting widget run by a game stage. Start
// begins a round; the game calls onComplete once when the player solves it.
type MiniGame interface {
	Kind() string
	Start(onComplete func())
}

// StartStage starts game for a stage of the open stop, wiring its completion
// back into CompleteStage. The callback is bound to the stop that was open
// at start; if that stop has been closed or reset meanwhile, it is ignored.
func (e *TourEngine) StartStage(stageID string, game MiniGame) error {
	stop, ok := e.ActiveStop()
	if !ok {
		return ErrNoActiveStop
	}
	stages := BuildStages(stop, nil)
	idx := stageIndex(stages, stageID)
	if idx == -1 {
		return fmt.Errorf("%w: %s", ErrStageNotFound, stageID)
	}
	if !e.IsStageUnlocked(stop.ID, stages, idx) {
		return fmt.Errorf("%w: %s", ErrStageLocked, stageID)
	}
	if stages[idx].Type != StageGame {
		return fmt.Errorf("%w: %s", ErrNotGameStage, stageID)
	}
	if game.Kind() != stages[idx].Game.Kind {
		return fmt.Errorf("stage %s expects a %q game, got %q", stageID, stages[idx].Game.Kind, game.Kind())
	}

	stopID := stop.ID
	game.Start(func() {
		e.CompleteStage(stopID, stageID)
	})
	return nil
}

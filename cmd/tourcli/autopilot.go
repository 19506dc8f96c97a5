package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/minigame"
	"github.com/wricardo/driving-tour/game/service"
)

// maxDriveCalls bounds a run whose car never reaches anything.
const maxDriveCalls = 2000

var ErrStuck = errors.New("autopilot stuck")

// Autopilot drives a tour end to end. It expects rounds dealt in authoring
// order (minigame.Identity).
type Autopilot struct {
	Tours  service.TourService
	Out    io.Writer
	Frames int
}

// Summary is what a finished run reports.
type Summary struct {
	SessionID string
	Stops     int
	Frames    int
	LapMS     int64
	Lap       *service.LapRecord
}

func (s Summary) String() string {
	line := fmt.Sprintf("Tour completed in %s: %d stops, %d frames (session %s)",
		engine.FormatLapTime(s.LapMS), s.Stops, s.Frames, s.SessionID)
	if s.Lap != nil {
		line += fmt.Sprintf(", leaderboard placement %d", s.Lap.Placement)
	}
	return line
}

// Run creates a session and drives it until the tour is completed.
func (a *Autopilot) Run(ctx context.Context, tour, player string) (*Summary, error) {
	out := a.Out
	if out == nil {
		out = io.Discard
	}
	frames := a.Frames
	if frames <= 0 {
		frames = 120
	}

	info, err := a.Tours.CreateSession(ctx, tour, player)
	if err != nil {
		return nil, err
	}
	summary := &Summary{SessionID: info.ID}

	bar := progressbar.NewOptions(int(info.Snapshot.TotalLength),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(info.ConfigName),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	for range maxDriveCalls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := a.Tours.Drive(ctx, info.ID, service.DriveRequest{Frames: frames, Accelerate: true})
		if err != nil {
			return nil, err
		}
		summary.Frames += res.FramesExecuted
		bar.Set(int(res.EndProgress))
		if res.Lap != nil {
			summary.Lap = res.Lap
		}

		switch res.StopReasonCode {
		case service.StopReasonStopOpened, service.StopReasonStopOpen:
			bar.Describe(res.Snapshot.ActiveStopID)
			closed, err := a.solveStop(ctx, info.ID)
			if err != nil {
				return nil, fmt.Errorf("stop %s: %w", res.Snapshot.ActiveStopID, err)
			}
			summary.Stops++
			if closed.Lap != nil {
				summary.Lap = closed.Lap
			}
			if closed.Snapshot.TourCompleted {
				summary.LapMS = closed.Snapshot.LapMS
				return summary, nil
			}
		case service.StopReasonTourCompleted:
			summary.LapMS = res.Snapshot.LapMS
			return summary, nil
		case service.StopReasonFinished:
			return nil, fmt.Errorf("%w: reached the finish with stops left", ErrStuck)
		case service.StopReasonPaused:
			if _, err := a.Tours.SetPaused(ctx, info.ID, lo.ToPtr(false)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: no progress after %d drive calls", ErrStuck, maxDriveCalls)
}

// solveStop completes every stage of the open stop in order and closes it.
func (a *Autopilot) solveStop(ctx context.Context, sessionID string) (*service.CloseResult, error) {
	res, err := a.Tours.GetStop(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	for _, stage := range res.Stop.Stages {
		if stage.Done {
			continue
		}
		if stage.Type == engine.StageContent {
			_, err = a.Tours.StageAction(ctx, sessionID, service.StageActionRequest{StageID: stage.ID, Action: "complete"})
		} else {
			err = a.solveGame(ctx, sessionID, stage.Stage)
		}
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage.ID, err)
		}
	}

	closed, err := a.Tours.CloseStop(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !closed.Closed {
		return nil, fmt.Errorf("%w: %s", ErrStuck, closed.Message)
	}
	return closed, nil
}

// solveGame plays one mini-game round to the end.
func (a *Autopilot) solveGame(ctx context.Context, sessionID string, stage engine.Stage) error {
	if stage.Game == nil {
		return fmt.Errorf("%w: stage has no game", minigame.ErrUnknownKind)
	}
	res, err := a.Tours.StageAction(ctx, sessionID, service.StageActionRequest{StageID: stage.ID, Action: "start"})
	if err != nil {
		return err
	}

	for _, move := range solution(*stage.Game, res.Game) {
		res, err = a.Tours.StageAction(ctx, sessionID, service.StageActionRequest{
			StageID: stage.ID,
			Action:  move.Action,
			Args:    service.ActionArgs{Index: move.Index, Target: move.Target},
		})
		if err != nil {
			return err
		}
	}

	if !lo.ContainsBy(res.Stop.Stages, func(s engine.StageView) bool { return s.ID == stage.ID && s.Done }) {
		return fmt.Errorf("%w: round did not complete", ErrStuck)
	}
	return nil
}

// solution lists the moves that solve a freshly dealt round.
func solution(game engine.GameConfig, view any) []minigame.Move {
	switch game.Kind {
	case engine.KindQuiz:
		return []minigame.Move{{Action: "answer", Index: game.CorrectIndex}}

	case engine.KindSequence:
		v, _ := view.(minigame.SequenceView)
		used := make([]bool, len(v.Choices))
		return lo.FilterMap(game.Steps, func(step string, _ int) (minigame.Move, bool) {
			for i, choice := range v.Choices {
				if choice == step && !used[i] {
					used[i] = true
					return minigame.Move{Action: "pick", Index: i}, true
				}
			}
			return minigame.Move{}, false
		})

	case engine.KindMemory:
		// Pairs are dealt as symbols followed by the same symbols again.
		v, _ := view.(minigame.MemoryView)
		half := len(v.Faces) / 2
		moves := make([]minigame.Move, 0, len(v.Faces))
		for i := range half {
			moves = append(moves,
				minigame.Move{Action: "flip", Index: i},
				minigame.Move{Action: "flip", Index: i + half})
		}
		return moves

	case engine.KindPuzzle:
		v, _ := view.(minigame.PuzzleView)
		return lo.Map(v.Tray, func(piece int, _ int) minigame.Move {
			return minigame.Move{Action: "place", Index: piece, Target: piece}
		})
	}
	return nil
}

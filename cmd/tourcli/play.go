package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/samber/lo"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/minigame"
	"github.com/wricardo/driving-tour/game/service"
)

// ErrQuit ends an interactive run.
var ErrQuit = errors.New("quit")

// Prompter asks the player for input.
type Prompter interface {
	Select(message string, options []string) (int, error)
	Input(message string) (string, error)
	Confirm(message string) (bool, error)
}

// surveyPrompter asks on the terminal.
type surveyPrompter struct{}

func (surveyPrompter) Select(message string, options []string) (int, error) {
	var idx int
	err := survey.AskOne(&survey.Select{Message: message, Options: options}, &idx)
	return idx, err
}

func (surveyPrompter) Input(message string) (string, error) {
	var answer string
	err := survey.AskOne(&survey.Input{Message: message}, &answer, survey.WithValidator(survey.Required))
	return answer, err
}

func (surveyPrompter) Confirm(message string) (bool, error) {
	ok := true
	err := survey.AskOne(&survey.Confirm{Message: message, Default: true}, &ok)
	return ok, err
}

// Driving choices offered between stops.
const (
	choiceAccelerate = "Accelerate"
	choiceBrake      = "Brake"
	choiceCoast      = "Coast"
	choicePause      = "Pause / resume"
	choiceQuit       = "Quit"
)

var drivingChoices = []string{choiceAccelerate, choiceBrake, choiceCoast, choicePause, choiceQuit}

// Player runs an interactive tour.
type Player struct {
	Tours  service.TourService
	Prompt Prompter
	Out    io.Writer
	Frames int
}

// Play drives a new session until the tour is completed or the player
// quits.
func (p *Player) Play(ctx context.Context, tour, name string) error {
	if p.Frames <= 0 {
		p.Frames = 60
	}
	info, err := p.Tours.CreateSession(ctx, tour, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.Out, "%s: %s\n", info.TourConfig.Name, info.Snapshot.Message)

	err = p.loop(ctx, info.ID)
	if errors.Is(err, ErrQuit) {
		fmt.Fprintf(p.Out, "Bye! Session %s\n", info.ID)
		return nil
	}
	return err
}

func (p *Player) loop(ctx context.Context, sessionID string) error {
	for {
		snap, err := p.Tours.GetSnapshot(ctx, sessionID)
		if err != nil {
			return err
		}
		if snap.TourCompleted {
			fmt.Fprintf(p.Out, "%s Lap %s\n", snap.Message, snap.LapTime)
			return nil
		}
		if snap.ModalOpen {
			if err := p.playStop(ctx, sessionID); err != nil {
				return err
			}
			continue
		}

		fmt.Fprintf(p.Out, "%s  %.0f/%.0f  speed %.0f\n", snap.LapTime, snap.Progress, snap.TotalLength, snap.Speed)
		choice, err := p.Prompt.Select("Next move", drivingChoices)
		if err != nil {
			return err
		}

		req := service.DriveRequest{Frames: p.Frames}
		switch drivingChoices[choice] {
		case choiceQuit:
			return ErrQuit
		case choicePause:
			if _, err := p.Tours.SetPaused(ctx, sessionID, nil); err != nil {
				return err
			}
			continue
		case choiceAccelerate:
			req.Accelerate = true
		case choiceBrake:
			req.Brake = true
		}

		res, err := p.Tours.Drive(ctx, sessionID, req)
		if err != nil {
			return err
		}
		if res.StoppedReason != "" {
			fmt.Fprintln(p.Out, res.StoppedReason)
		}
		if res.Lap != nil {
			fmt.Fprintf(p.Out, "Lap %s, placement %d\n", res.Lap.LapTime, res.Lap.Placement)
		}
	}
}

// playStop works through the open stop until it closes.
func (p *Player) playStop(ctx context.Context, sessionID string) error {
	for {
		res, err := p.Tours.GetStop(ctx, sessionID)
		if err != nil {
			return err
		}
		stop := res.Stop
		fmt.Fprintf(p.Out, "\n== %s (%s) ==\n", stop.Name, stop.Progress)

		if stop.CanClose {
			closed, err := p.Tours.CloseStop(ctx, sessionID)
			if err != nil {
				return err
			}
			if closed.Lap != nil {
				fmt.Fprintf(p.Out, "Lap %s, placement %d\n", closed.Lap.LapTime, closed.Lap.Placement)
			}
			return nil
		}

		open := lo.Filter(stop.Stages, func(s engine.StageView, _ int) bool { return s.Unlocked && !s.Done })
		labels := lo.Map(open, func(s engine.StageView, _ int) string {
			return fmt.Sprintf("%s [%s]", s.Title, s.Status)
		})
		choice, err := p.Prompt.Select("Stage", append(labels, choiceQuit))
		if err != nil {
			return err
		}
		if choice >= len(open) {
			return ErrQuit
		}

		stage := open[choice]
		if stage.Type == engine.StageContent {
			err = p.readContent(ctx, sessionID, stop.Content, stage)
		} else {
			err = p.playGame(ctx, sessionID, stage)
		}
		if err != nil {
			return err
		}
	}
}

func (p *Player) readContent(ctx context.Context, sessionID string, content engine.ContentConfig, stage engine.StageView) error {
	fmt.Fprintf(p.Out, "\n%s\n%s\n", content.Title, content.Body)
	ok, err := p.Prompt.Confirm("Mark as read?")
	if err != nil || !ok {
		return err
	}
	_, err = p.Tours.StageAction(ctx, sessionID, service.StageActionRequest{StageID: stage.ID, Action: "complete"})
	return err
}

// playGame prompts for moves until the round is solved.
func (p *Player) playGame(ctx context.Context, sessionID string, stage engine.StageView) error {
	res, err := p.Tours.StageAction(ctx, sessionID, service.StageActionRequest{StageID: stage.ID, Action: "start"})
	if err != nil {
		return err
	}

	for !gameSolved(res.Game) {
		move, err := p.askMove(res.Game)
		if err != nil {
			return err
		}
		next, err := p.Tours.StageAction(ctx, sessionID, service.StageActionRequest{
			StageID: stage.ID,
			Action:  move.Action,
			Args:    service.ActionArgs{Index: move.Index, Target: move.Target},
		})
		if errors.Is(err, minigame.ErrInvalidMove) || errors.Is(err, minigame.ErrBoardLocked) {
			fmt.Fprintf(p.Out, "%v\n", err)
			continue
		}
		if err != nil {
			return err
		}
		res = next
	}
	fmt.Fprintln(p.Out, "Solved!")
	return nil
}

func gameSolved(view any) bool {
	switch v := view.(type) {
	case minigame.QuizView:
		return v.Solved
	case minigame.SequenceView:
		return v.Solved
	case minigame.MemoryView:
		return v.Solved
	case minigame.PuzzleView:
		return v.Solved
	}
	return true
}

// askMove renders a round and asks for the next move.
func (p *Player) askMove(view any) (minigame.Move, error) {
	switch v := view.(type) {
	case minigame.QuizView:
		i, err := p.Prompt.Select(v.Question, v.Options)
		return minigame.Move{Action: "answer", Index: i}, err

	case minigame.SequenceView:
		if len(v.Selected) > 0 {
			fmt.Fprintf(p.Out, "So far: %s\n", strings.Join(v.Selected, " → "))
		}
		if v.Incorrect {
			fmt.Fprintln(p.Out, "Wrong order.")
		}
		options := lo.Map(v.Choices, func(c string, i int) string {
			if v.Picked[i] {
				return "✓ " + c
			}
			return c
		})
		i, err := p.Prompt.Select("Next step", append(options, "Start over"))
		if i == len(v.Choices) {
			return minigame.Move{Action: "reset"}, err
		}
		return minigame.Move{Action: "pick", Index: i}, err

	case minigame.MemoryView:
		cards := lo.Map(v.Faces, func(face string, i int) string {
			if face == "" {
				return fmt.Sprintf("%d:?", i)
			}
			return fmt.Sprintf("%d:%s", i, face)
		})
		fmt.Fprintln(p.Out, strings.Join(cards, " "))
		i, err := p.askInts("Card to flip", 1)
		if err != nil {
			return minigame.Move{}, err
		}
		return minigame.Move{Action: "flip", Index: i[0]}, nil

	case minigame.PuzzleView:
		fmt.Fprintf(p.Out, "Tray: %v\n", v.Tray)
		for row := range v.Size {
			fmt.Fprintln(p.Out, v.Board[row*v.Size:(row+1)*v.Size])
		}
		i, err := p.askInts("Piece and slot", 2)
		if err != nil {
			return minigame.Move{}, err
		}
		return minigame.Move{Action: "place", Index: i[0], Target: i[1]}, nil
	}
	return minigame.Move{}, fmt.Errorf("%w: %T", minigame.ErrUnknownKind, view)
}

// askInts reads n whitespace separated integers, asking again on bad input.
func (p *Player) askInts(message string, n int) ([]int, error) {
	for {
		answer, err := p.Prompt.Input(message)
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(answer)
		if len(fields) != n {
			fmt.Fprintf(p.Out, "Expected %d numbers\n", n)
			continue
		}
		values := make([]int, 0, n)
		for _, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				break
			}
			values = append(values, v)
		}
		if len(values) == n {
			return values, nil
		}
		fmt.Fprintln(p.Out, "Not a number")
	}
}

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/driving-tour/game/config"
	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/minigame"
	"github.com/wricardo/driving-tour/game/service"
	"github.com/wricardo/driving-tour/game/session"
)

const allGamesTour = `{
	"name": "All games",
	"track": {"control_points": [{"x": 0.1, "y": 0.5}, {"x": 0.5, "y": 0.5}, {"x": 0.9, "y": 0.5}]},
	"stops": [
		{"id": "first", "name": "First", "content": {"title": "Hello", "body": "Welcome aboard"}, "games": [
			{"id": "quiz", "kind": "quiz", "question": "Pick two", "options": ["one", "two"], "correct_index": 1},
			{"id": "order", "kind": "sequence", "steps": ["a", "b", "a", "c"]}
		]},
		{"id": "second", "name": "Second", "games": [
			{"id": "pairs", "kind": "memory", "symbols": ["x", "y", "z"]},
			{"id": "picture", "kind": "puzzle", "size": 2}
		]}
	]
}`

func testService(t *testing.T, dir string, opts minigame.Options) service.TourService {
	t.Helper()
	configs, err := config.NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewTourService(log, session.NewManager(log), configs, nil, service.WithGameOptions(opts))
}

func TestAutopilot_Run(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "all.json", allGamesTour)

	var out bytes.Buffer
	a := &Autopilot{
		Tours:  testService(t, dir, minigame.Options{Order: minigame.Identity}),
		Out:    &out,
		Frames: 120,
	}

	summary, err := a.Run(context.Background(), "all", "robot")
	if err != nil {
		t.Fatalf("Autopilot failed: %v", err)
	}

	if summary.Stops != 2 {
		t.Errorf("Expected 2 stops solved, got %d", summary.Stops)
	}
	if summary.Frames == 0 {
		t.Error("Expected frames to be counted")
	}

	snap, err := a.Tours.GetSnapshot(context.Background(), summary.SessionID)
	if err != nil {
		t.Fatalf("Failed to get snapshot: %v", err)
	}
	if !snap.TourCompleted {
		t.Error("Expected tour to be completed")
	}
	if !strings.Contains(summary.String(), "Tour completed in") {
		t.Errorf("Unexpected summary %q", summary.String())
	}
}

func TestAutopilot_ShippedTours(t *testing.T) {
	dir := filepath.Join("..", "..", "configs")
	files, err := tourFiles(dir)
	if err != nil {
		t.Skipf("Skipping test - configs directory not found: %v", err)
	}

	tours := testService(t, dir, minigame.Options{Order: minigame.Identity})
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".json")
		t.Run(name, func(t *testing.T) {
			a := &Autopilot{Tours: tours, Frames: 300}
			if _, err := a.Run(context.Background(), name, ""); err != nil {
				t.Errorf("Expected %s to be completed by autopilot, got %v", name, err)
			}
		})
	}
}

func TestAutopilot_UnknownTour(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "all.json", allGamesTour)

	a := &Autopilot{Tours: testService(t, dir, minigame.Options{Order: minigame.Identity})}
	_, err := a.Run(context.Background(), "nowhere", "")
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestAutopilot_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "all.json", allGamesTour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &Autopilot{Tours: testService(t, dir, minigame.Options{Order: minigame.Identity})}
	if _, err := a.Run(ctx, "all", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSolution(t *testing.T) {
	t.Run("quiz answers the correct option", func(t *testing.T) {
		moves := solution(engine.GameConfig{Kind: engine.KindQuiz, CorrectIndex: 2}, nil)
		if len(moves) != 1 || moves[0].Action != "answer" || moves[0].Index != 2 {
			t.Errorf("Unexpected moves %+v", moves)
		}
	})

	t.Run("sequence picks repeated steps once each", func(t *testing.T) {
		view := minigame.SequenceView{Choices: []string{"b", "a", "a"}}
		moves := solution(engine.GameConfig{Kind: engine.KindSequence, Steps: []string{"a", "b", "a"}}, view)
		want := []int{1, 0, 2}
		if len(moves) != len(want) {
			t.Fatalf("Expected %d moves, got %+v", len(want), moves)
		}
		for i, m := range moves {
			if m.Action != "pick" || m.Index != want[i] {
				t.Errorf("Move %d: expected pick %d, got %+v", i, want[i], m)
			}
		}
	})

	t.Run("memory flips matching halves", func(t *testing.T) {
		view := minigame.MemoryView{Faces: make([]string, 4)}
		moves := solution(engine.GameConfig{Kind: engine.KindMemory}, view)
		want := []int{0, 2, 1, 3}
		for i, m := range moves {
			if m.Index != want[i] {
				t.Errorf("Move %d: expected flip %d, got %d", i, want[i], m.Index)
			}
		}
	})

	t.Run("puzzle places every tray piece on its slot", func(t *testing.T) {
		view := minigame.PuzzleView{Tray: []int{3, 1}}
		moves := solution(engine.GameConfig{Kind: engine.KindPuzzle}, view)
		if len(moves) != 2 || moves[0].Index != 3 || moves[0].Target != 3 {
			t.Errorf("Unexpected moves %+v", moves)
		}
	})
}

func TestSolveGame_WithIdentityDeal(t *testing.T) {
	// A real round confirms that the dealt order matches what solution expects.
	for _, game := range []engine.GameConfig{
		{ID: "m", Kind: engine.KindMemory, Symbols: []string{"x", "y"}},
		{ID: "p", Kind: engine.KindPuzzle, Size: 3},
		{ID: "s", Kind: engine.KindSequence, Steps: []string{"one", "two", "three"}},
	} {
		t.Run(game.Kind, func(t *testing.T) {
			round, err := minigame.New(game, minigame.Options{Order: minigame.Identity})
			if err != nil {
				t.Fatalf("Failed to deal: %v", err)
			}
			for _, m := range solution(game, round.View()) {
				if err := round.Apply(m); err != nil {
					t.Fatalf("Move %+v failed: %v", m, err)
				}
			}
			if !round.Solved() {
				t.Error("Expected round to be solved")
			}
		})
	}
}

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/samber/lo"

	"github.com/wricardo/driving-tour/game/minigame"
)

// mockPrompter answers through its Func fields.
type mockPrompter struct {
	SelectFunc  func(message string, options []string) (int, error)
	InputFunc   func(message string) (string, error)
	ConfirmFunc func(message string) (bool, error)
	asked       []string
}

func (m *mockPrompter) Select(message string, options []string) (int, error) {
	m.asked = append(m.asked, message)
	return m.SelectFunc(message, options)
}

func (m *mockPrompter) Input(message string) (string, error) {
	m.asked = append(m.asked, message)
	return m.InputFunc(message)
}

func (m *mockPrompter) Confirm(message string) (bool, error) {
	m.asked = append(m.asked, message)
	return m.ConfirmFunc(message)
}

// driver accelerates, takes the first open stage and answers correctly.
func driver() *mockPrompter {
	return &mockPrompter{
		SelectFunc: func(message string, options []string) (int, error) {
			switch message {
			case "Next move":
				return lo.IndexOf(options, choiceAccelerate), nil
			case "Stage":
				return 0, nil
			case "Pick two":
				return lo.IndexOf(options, "two"), nil
			}
			return 0, errors.New("unexpected prompt " + message)
		},
		ConfirmFunc: func(string) (bool, error) { return true, nil },
	}
}

const quizTour = `{
	"name": "Quiz road",
	"track": {"control_points": [{"x": 0.1, "y": 0.5}, {"x": 0.9, "y": 0.5}]},
	"stops": [
		{"id": "only", "name": "Only", "content": {"title": "Hello", "body": "Read me"}, "games": [
			{"id": "quiz", "kind": "quiz", "question": "Pick two", "options": ["one", "two"], "correct_index": 1}
		]}
	],
	"messages": {"victory": "Done!"}
}`

func TestPlayer_Play(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "quiz.json", quizTour)

	var out bytes.Buffer
	prompt := driver()
	p := &Player{
		Tours:  testService(t, dir, minigame.Options{}),
		Prompt: prompt,
		Out:    &out,
		Frames: 120,
	}

	if err := p.Play(context.Background(), "quiz", "ana"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	text := out.String()
	for _, want := range []string{"Quiz road", "Read me", "Solved!", "Done!"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
	if !lo.Contains(prompt.asked, "Mark as read?") {
		t.Error("Expected the content stage to be confirmed")
	}
}

func TestPlayer_Quit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "quiz.json", quizTour)

	var out bytes.Buffer
	p := &Player{
		Tours: testService(t, dir, minigame.Options{}),
		Prompt: &mockPrompter{
			SelectFunc: func(message string, options []string) (int, error) {
				return lo.IndexOf(options, choiceQuit), nil
			},
		},
		Out: &out,
	}

	if err := p.Play(context.Background(), "quiz", ""); err != nil {
		t.Fatalf("Expected quitting to end cleanly, got %v", err)
	}
	if !strings.Contains(out.String(), "Bye!") {
		t.Errorf("Expected goodbye, got:\n%s", out.String())
	}
}

func TestPlayer_PromptError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "quiz.json", quizTour)

	interrupted := errors.New("interrupt")
	p := &Player{
		Tours: testService(t, dir, minigame.Options{}),
		Prompt: &mockPrompter{
			SelectFunc: func(string, []string) (int, error) { return 0, interrupted },
		},
		Out: &bytes.Buffer{},
	}

	if err := p.Play(context.Background(), "quiz", ""); !errors.Is(err, interrupted) {
		t.Errorf("Expected prompt error, got %v", err)
	}
}

func TestPlayer_AskMove(t *testing.T) {
	tests := []struct {
		name   string
		view   any
		input  string
		choice int
		want   minigame.Move
	}{
		{
			name:   "sequence pick",
			view:   minigame.SequenceView{Choices: []string{"a", "b"}, Picked: []bool{false, false}},
			choice: 1,
			want:   minigame.Move{Action: "pick", Index: 1},
		},
		{
			name:   "sequence start over",
			view:   minigame.SequenceView{Choices: []string{"a", "b"}, Picked: []bool{true, false}, Selected: []string{"a"}},
			choice: 2,
			want:   minigame.Move{Action: "reset"},
		},
		{
			name:  "memory flip",
			view:  minigame.MemoryView{Faces: []string{"", "", "", ""}},
			input: "3",
			want:  minigame.Move{Action: "flip", Index: 3},
		},
		{
			name:  "puzzle place",
			view:  minigame.PuzzleView{Size: 2, Tray: []int{0, 1, 2, 3}, Board: []int{-1, -1, -1, -1}},
			input: "2 1",
			want:  minigame.Move{Action: "place", Index: 2, Target: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Player{
				Prompt: &mockPrompter{
					SelectFunc: func(string, []string) (int, error) { return tt.choice, nil },
					InputFunc:  func(string) (string, error) { return tt.input, nil },
				},
				Out: &bytes.Buffer{},
			}
			got, err := p.askMove(tt.view)
			if err != nil {
				t.Fatalf("askMove failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestPlayer_AskIntsRetries(t *testing.T) {
	answers := []string{"x", "1", "4 5"}
	var out bytes.Buffer
	p := &Player{
		Prompt: &mockPrompter{
			InputFunc: func(string) (string, error) {
				a := answers[0]
				answers = answers[1:]
				return a, nil
			},
		},
		Out: &out,
	}

	got, err := p.askInts("Piece and slot", 2)
	if err != nil {
		t.Fatalf("askInts failed: %v", err)
	}
	if len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Errorf("Expected [4 5], got %v", got)
	}
	if !strings.Contains(out.String(), "Expected 2 numbers") {
		t.Errorf("Expected a retry message, got:\n%s", out.String())
	}
}

package minigame

import (
	"fmt"

	"github.com/wricardo/driving-tour/game/engine"
)

// Quiz is a single multiple-choice question.
type Quiz struct {
	completion
	question string
	options  []string
	correct  int
	wrong    map[int]bool
}

type QuizView struct {
	Kind     string   `json:"kind"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Wrong    []int    `json:"wrong"`
	Solved   bool     `json:"solved"`
}

func NewQuiz(config engine.GameConfig) *Quiz {
	return &Quiz{
		question: config.Question,
		options:  append([]string{}, config.Options...),
		correct:  config.CorrectIndex,
		wrong:    make(map[int]bool),
	}
}

func (q *Quiz) Kind() string { return engine.KindQuiz }

// Answer picks option i. Wrong answers are remembered; a correct one solves
// the quiz. Answers after solving are ignored.
func (q *Quiz) Answer(i int) (bool, error) {
	if err := outOfRange(i, len(q.options)); err != nil {
		return false, err
	}
	if q.solved {
		return i == q.correct, nil
	}
	if i != q.correct {
		q.wrong[i] = true
		return false, nil
	}
	q.finish()
	return true, nil
}

func (q *Quiz) Apply(m Move) error {
	switch m.Action {
	case "answer", "":
		_, err := q.Answer(m.Index)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, m.Action)
	}
}

func (q *Quiz) View() any {
	wrong := make([]int, 0, len(q.wrong))
	for i := range q.options {
		if q.wrong[i] {
			wrong = append(wrong, i)
		}
	}
	return QuizView{
		Kind:     engine.KindQuiz,
		Question: q.question,
		Options:  append([]string{}, q.options...),
		Wrong:    wrong,
		Solved:   q.solved,
	}
}

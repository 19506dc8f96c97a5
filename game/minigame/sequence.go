package minigame

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/wricardo/driving-tour/game/engine"
)

// Sequence asks the player to pick shuffled steps in authoring order. The
// answer is only checked once every step has been picked.
type Sequence struct {
	completion
	steps     []string
	display   []string
	picked    []bool
	selected  []string
	incorrect bool
}

type SequenceView struct {
	Kind      string   `json:"kind"`
	Choices   []string `json:"choices"`
	Picked    []bool   `json:"picked"`
	Selected  []string `json:"selected"`
	Incorrect bool     `json:"incorrect"`
	Solved    bool     `json:"solved"`
}

func NewSequence(config engine.GameConfig, opts Options) *Sequence {
	opts = opts.withDefaults()
	steps := append([]string{}, config.Steps...)
	order := opts.Order(len(steps))
	return &Sequence{
		steps:    steps,
		display:  lo.Map(order, func(i int, _ int) string { return steps[i] }),
		picked:   make([]bool, len(steps)),
		selected: []string{},
	}
}

func (s *Sequence) Kind() string { return engine.KindSequence }

// Pick appends displayed choice i to the answer.
func (s *Sequence) Pick(i int) error {
	if s.solved {
		return ErrAlreadySolved
	}
	if err := outOfRange(i, len(s.display)); err != nil {
		return err
	}
	if s.picked[i] {
		return fmt.Errorf("%w: choice %d already picked", ErrInvalidMove, i)
	}

	s.picked[i] = true
	s.selected = append(s.selected, s.display[i])
	if len(s.selected) < len(s.steps) {
		return nil
	}

	for j, step := range s.selected {
		if step != s.steps[j] {
			s.incorrect = true
			return nil
		}
	}
	s.finish()
	return nil
}

// Reset clears the current answer.
func (s *Sequence) Reset() {
	if s.solved {
		return
	}
	s.selected = []string{}
	s.picked = make([]bool, len(s.display))
	s.incorrect = false
}

func (s *Sequence) Apply(m Move) error {
	switch m.Action {
	case "pick", "":
		return s.Pick(m.Index)
	case "reset":
		s.Reset()
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, m.Action)
	}
}

func (s *Sequence) View() any {
	return SequenceView{
		Kind:      engine.KindSequence,
		Choices:   append([]string{}, s.display...),
		Picked:    append([]bool{}, s.picked...),
		Selected:  append([]string{}, s.selected...),
		Incorrect: s.incorrect,
		Solved:    s.solved,
	}
}

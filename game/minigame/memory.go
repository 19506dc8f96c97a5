package minigame

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/wricardo/driving-tour/game/engine"
)

// MismatchDelay is how long two unmatched cards stay face up.
const MismatchDelay = 700 * time.Millisecond

var defaultSymbols = []string{"A", "B", "C", "D", "E", "F"}

// Memory is a pair-matching board. Each symbol appears twice.
type Memory struct {
	completion
	deck      []string
	revealed  []bool
	matched   []bool
	first     int
	hide      []int
	lockUntil time.Time
	now       func() time.Time
}

// MemoryView is the board as the player sees it. Hidden cards have an
// empty face.
type MemoryView struct {
	Kind    string   `json:"kind"`
	Faces   []string `json:"faces"`
	Matched []bool   `json:"matched"`
	Locked  bool     `json:"locked"`
	Solved  bool     `json:"solved"`
}

func NewMemory(config engine.GameConfig, opts Options) *Memory {
	opts = opts.withDefaults()
	symbols := config.Symbols
	if len(symbols) == 0 {
		symbols = defaultSymbols
	}
	pairs := append(append([]string{}, symbols...), symbols...)
	order := opts.Order(len(pairs))
	deck := lo.Map(order, func(i int, _ int) string { return pairs[i] })

	return &Memory{
		deck:     deck,
		revealed: make([]bool, len(deck)),
		matched:  make([]bool, len(deck)),
		first:    -1,
		now:      opts.Now,
	}
}

func (m *Memory) Kind() string { return engine.KindMemory }

// Flip turns card i face up. A second card that does not match the first
// locks the board for MismatchDelay, after which both turn back down.
func (m *Memory) Flip(i int) error {
	if m.solved {
		return ErrAlreadySolved
	}
	m.settle()
	if len(m.hide) > 0 {
		return ErrBoardLocked
	}
	if err := outOfRange(i, len(m.deck)); err != nil {
		return err
	}
	if m.matched[i] || m.first == i {
		return fmt.Errorf("%w: card %d is already face up", ErrInvalidMove, i)
	}

	m.revealed[i] = true
	if m.first == -1 {
		m.first = i
		return nil
	}

	prev := m.first
	m.first = -1
	if m.deck[prev] == m.deck[i] {
		m.matched[prev] = true
		m.matched[i] = true
		if !lo.Contains(m.matched, false) {
			m.finish()
		}
		return nil
	}

	m.hide = []int{prev, i}
	m.lockUntil = m.now().Add(MismatchDelay)
	return nil
}

// settle turns mismatched cards back down once the delay has passed.
func (m *Memory) settle() {
	if len(m.hide) == 0 || m.now().Before(m.lockUntil) {
		return
	}
	for _, i := range m.hide {
		m.revealed[i] = false
	}
	m.hide = nil
}

func (m *Memory) Apply(mv Move) error {
	switch mv.Action {
	case "flip", "":
		return m.Flip(mv.Index)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, mv.Action)
	}
}

func (m *Memory) View() any {
	m.settle()
	faces := make([]string, len(m.deck))
	for i, symbol := range m.deck {
		if m.revealed[i] || m.matched[i] {
			faces[i] = symbol
		}
	}
	return MemoryView{
		Kind:    engine.KindMemory,
		Faces:   faces,
		Matched: append([]bool{}, m.matched...),
		Locked:  len(m.hide) > 0,
		Solved:  m.solved,
	}
}

package minigame

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/wricardo/driving-tour/game/engine"
)

var (
	ErrUnknownKind   = errors.New("unknown mini-game kind")
	ErrInvalidMove   = errors.New("invalid move")
	ErrUnknownAction = errors.New("unknown action")
	ErrBoardLocked   = errors.New("board is locked")
	ErrAlreadySolved = errors.New("game already solved")
)

// Move is a player action addressed to a running game. Which fields are read
// depends on the game kind and action name.
type Move struct {
	Action string `json:"action"`
	Index  int    `json:"index"`
	Target int    `json:"target"`
}

// Game is a mini-game the service can drive from any transport.
type Game interface {
	engine.MiniGame
	Apply(m Move) error
	Solved() bool
	View() any
}

// Options carries the collaborators shared by all games.
type Options struct {
	// Now drives the memory game's mismatch delay.
	Now func() time.Time
	// Order returns a permutation of [0, n). Defaults to a random shuffle.
	Order func(n int) []int
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Order == nil {
		o.Order = RandomOrder
	}
	return o
}

// RandomOrder returns a random permutation of [0, n).
func RandomOrder(n int) []int {
	return lo.Shuffle(lo.Range(n))
}

// Identity keeps authoring order. Useful for tests and replays.
func Identity(n int) []int {
	return lo.Range(n)
}

// New builds a game for config by kind.
func New(config engine.GameConfig, opts Options) (Game, error) {
	opts = opts.withDefaults()
	switch config.Kind {
	case engine.KindMemory:
		return NewMemory(config, opts), nil
	case engine.KindQuiz:
		return NewQuiz(config), nil
	case engine.KindSequence:
		return NewSequence(config, opts), nil
	case engine.KindPuzzle:
		return NewPuzzle(config, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, config.Kind)
	}
}

// completion fires a callback at most once.
type completion struct {
	onComplete func()
	solved     bool
}

func (c *completion) Start(onComplete func()) {
	c.onComplete = onComplete
}

func (c *completion) Solved() bool {
	return c.solved
}

func (c *completion) finish() {
	if c.solved {
		return
	}
	c.solved = true
	if c.onComplete != nil {
		c.onComplete()
	}
}

func outOfRange(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidMove, i, n)
	}
	return nil
}

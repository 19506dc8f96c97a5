package minigame

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/wricardo/driving-tour/game/engine"
)

const (
	MinPuzzleSize     = 2
	MaxPuzzleSize     = 6
	DefaultPuzzleSize = 3
)

// Puzzle is a size x size tile board. Pieces start in a shuffled tray and
// the board is solved when every cell i holds piece i.
type Puzzle struct {
	completion
	size  int
	image string
	tray  []int
	board []int
}

type PuzzleView struct {
	Kind   string `json:"kind"`
	Size   int    `json:"size"`
	Image  string `json:"image,omitempty"`
	Tray   []int  `json:"tray"`
	Board  []int  `json:"board"`
	Solved bool   `json:"solved"`
}

func NewPuzzle(config engine.GameConfig, opts Options) *Puzzle {
	opts = opts.withDefaults()
	size := config.Size
	if size == 0 {
		size = DefaultPuzzleSize
	}
	size = max(MinPuzzleSize, min(MaxPuzzleSize, size))
	total := size * size

	return &Puzzle{
		size:  size,
		image: config.Image,
		tray:  opts.Order(total),
		board: lo.Times(total, func(int) int { return -1 }),
	}
}

func (p *Puzzle) Kind() string { return engine.KindPuzzle }

// Place moves a piece from the tray to a cell. A piece already in the cell
// goes back to the tray.
func (p *Puzzle) Place(piece, cell int) error {
	if p.solved {
		return ErrAlreadySolved
	}
	if err := outOfRange(cell, len(p.board)); err != nil {
		return err
	}
	idx := lo.IndexOf(p.tray, piece)
	if idx == -1 {
		return fmt.Errorf("%w: piece %d is not in the tray", ErrInvalidMove, piece)
	}
	p.tray = append(p.tray[:idx], p.tray[idx+1:]...)
	p.put(piece, cell)
	p.check()
	return nil
}

// Move drags a placed piece to another cell.
func (p *Puzzle) Move(from, to int) error {
	if p.solved {
		return ErrAlreadySolved
	}
	if err := outOfRange(from, len(p.board)); err != nil {
		return err
	}
	if err := outOfRange(to, len(p.board)); err != nil {
		return err
	}
	piece := p.board[from]
	if piece == -1 {
		return fmt.Errorf("%w: cell %d is empty", ErrInvalidMove, from)
	}
	if from == to {
		return nil
	}
	p.board[from] = -1
	p.put(piece, to)
	p.check()
	return nil
}

// Remove returns the piece in cell to the tray.
func (p *Puzzle) Remove(cell int) error {
	if p.solved {
		return ErrAlreadySolved
	}
	if err := outOfRange(cell, len(p.board)); err != nil {
		return err
	}
	if p.board[cell] == -1 {
		return fmt.Errorf("%w: cell %d is empty", ErrInvalidMove, cell)
	}
	p.tray = append(p.tray, p.board[cell])
	p.board[cell] = -1
	return nil
}

func (p *Puzzle) put(piece, cell int) {
	if existing := p.board[cell]; existing != -1 {
		p.tray = append(p.tray, existing)
	}
	p.board[cell] = piece
}

func (p *Puzzle) check() {
	for i, piece := range p.board {
		if piece != i {
			return
		}
	}
	p.finish()
}

func (p *Puzzle) Apply(m Move) error {
	switch m.Action {
	case "place", "":
		return p.Place(m.Index, m.Target)
	case "move":
		return p.Move(m.Index, m.Target)
	case "remove":
		return p.Remove(m.Index)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, m.Action)
	}
}

func (p *Puzzle) View() any {
	return PuzzleView{
		Kind:   engine.KindPuzzle,
		Size:   p.size,
		Image:  p.image,
		Tray:   append([]int{}, p.tray...),
		Board:  append([]int{}, p.board...),
		Solved: p.solved,
	}
}

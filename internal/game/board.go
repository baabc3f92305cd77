package game

import "fmt"

const (
	// BoardSize is the width and height of the standard board.
	BoardSize = 19

	// WinLength is the number of contiguous stones that wins the game.
	WinLength = 5
)

// Side is the content of a cell and the role of a player in a session.
// Black always moves first.
type Side uint8

const (
	Empty Side = iota
	Black
	White
)

func (s Side) String() string {
	switch s {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return ""
	}
}

// Opponent returns the other playing side. Empty has no opponent.
func (s Side) Opponent() Side {
	switch s {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

// ParseSide is the inverse of Side.String.
func ParseSide(s string) (Side, error) {
	switch s {
	case "black":
		return Black, nil
	case "white":
		return White, nil
	case "":
		return Empty, nil
	default:
		return Empty, fmt.Errorf("unknown side %q", s)
	}
}

// Coord is a (row, col) pair on the board.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// directions are the four axes checked from a placed stone:
// horizontal, vertical and both diagonals.
var directions = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// Board is a square grid of cells.
type Board struct {
	size  int
	cells []Side
	free  int
}

// NewBoard returns an empty board of the given size.
func NewBoard(size int) *Board {
	return &Board{
		size:  size,
		cells: make([]Side, size*size),
		free:  size * size,
	}
}

func (b *Board) Size() int { return b.size }

// InBounds reports whether c lies on the board.
func (b *Board) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < b.size && c.Col >= 0 && c.Col < b.size
}

// At returns the content of the cell. The caller must check bounds.
func (b *Board) At(c Coord) Side {
	return b.cells[c.Row*b.size+c.Col]
}

func (b *Board) set(c Coord, s Side) {
	i := c.Row*b.size + c.Col
	switch {
	case b.cells[i] == Empty && s != Empty:
		b.free--
	case b.cells[i] != Empty && s == Empty:
		b.free++
	}
	b.cells[i] = s
}

// Full reports whether no empty cell remains.
func (b *Board) Full() bool { return b.free == 0 }

// Stones counts the stones of one side.
func (b *Board) Stones(s Side) int {
	n := 0
	for _, c := range b.cells {
		if c == s {
			n++
		}
	}
	return n
}

// EmptyCells lists the free coordinates in row-major order.
func (b *Board) EmptyCells() []Coord {
	out := make([]Coord, 0, b.free)
	for i, c := range b.cells {
		if c == Empty {
			out = append(out, Coord{Row: i / b.size, Col: i % b.size})
		}
	}
	return out
}

// FiveFrom checks whether the stone at c is part of a line of at least
// WinLength same-side stones along any of the four axes.
func (b *Board) FiveFrom(c Coord) bool {
	side := b.At(c)
	if side == Empty {
		return false
	}
	for _, d := range directions {
		count := 1
		for _, sign := range [2]int{1, -1} {
			r, col := c.Row+sign*d[0], c.Col+sign*d[1]
			for b.InBounds(Coord{Row: r, Col: col}) && b.At(Coord{Row: r, Col: col}) == side {
				count++
				r += sign * d[0]
				col += sign * d[1]
			}
		}
		if count >= WinLength {
			return true
		}
	}
	return false
}

// Rows returns the board as rows of side names ("" for empty), the shape
// clients render.
func (b *Board) Rows() [][]string {
	rows := make([][]string, b.size)
	for r := range rows {
		rows[r] = make([]string, b.size)
		for c := range rows[r] {
			rows[r][c] = b.cells[r*b.size+c].String()
		}
	}
	return rows
}

// BoardFromRows rebuilds a board from the Rows representation.
func BoardFromRows(rows [][]string) (*Board, error) {
	b := NewBoard(len(rows))
	for r, row := range rows {
		if len(row) != len(rows) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", r, len(row), len(rows))
		}
		for c, v := range row {
			s, err := ParseSide(v)
			if err != nil {
				return nil, fmt.Errorf("cell (%d,%d): %w", r, c, err)
			}
			b.set(Coord{Row: r, Col: c}, s)
		}
	}
	return b, nil
}

package renju

import (
	"strings"
)

// WinLength is the run of identical stones that ends a match.
const WinLength = 5

// Cell is one position on the board. Coordinates are 1-indexed, a zero
// value means the cell is empty, non-zero values are stone codes.
type Cell struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Value int `json:"value"`
}

// Grid is a square board. The shape is fixed at creation, cell values
// are mutated through Place only.
type Grid struct {
	size  int
	cells [][]int // cells[y-1][x-1]
}

// NewGrid returns an empty size x size grid.
func NewGrid(size int) *Grid {
	cells := make([][]int, size)
	for i := range cells {
		cells[i] = make([]int, size)
	}
	return &Grid{size: size, cells: cells}
}

func (g *Grid) Size() int {
	return g.size
}

// Cell returns the cell at 1-indexed (x, y).
func (g *Grid) Cell(x, y int) (Cell, error) {
	if x < 1 || x > g.size || y < 1 || y > g.size {
		return Cell{}, ErrOutOfBounds
	}
	return Cell{X: x, Y: y, Value: g.cells[y-1][x-1]}, nil
}

// Place puts a stone value at (x, y). The cell must be empty.
func (g *Grid) Place(x, y, value int) error {
	cell, err := g.Cell(x, y)
	if err != nil {
		return err
	}
	if cell.Value != 0 {
		return ErrCellOccupied
	}
	g.cells[y-1][x-1] = value
	return nil
}

// HasFreeSpace reports whether any cell is still empty.
func (g *Grid) HasFreeSpace() bool {
	for _, row := range g.cells {
		for _, v := range row {
			if v == 0 {
				return true
			}
		}
	}
	return false
}

// CheckVictory scans rows, then columns, then both diagonal families
// for a contiguous run of WinLength identical non-zero values. The
// first qualifying run in scan order is returned; an empty result
// means no winner yet. The scan order is a deterministic tie-break
// and must not change.
func (g *Grid) CheckVictory() []Cell {
	// Rows.
	for y := 1; y <= g.size; y++ {
		line := make([]Cell, 0, g.size)
		for x := 1; x <= g.size; x++ {
			line = append(line, Cell{X: x, Y: y, Value: g.cells[y-1][x-1]})
		}
		if run := winningRun(line); run != nil {
			return run
		}
	}

	// Columns.
	for x := 1; x <= g.size; x++ {
		line := make([]Cell, 0, g.size)
		for y := 1; y <= g.size; y++ {
			line = append(line, Cell{X: x, Y: y, Value: g.cells[y-1][x-1]})
		}
		if run := winningRun(line); run != nil {
			return run
		}
	}

	// Main diagonals: cells where x-y is constant, offsets 1-size..size-1.
	for off := 1 - g.size; off <= g.size-1; off++ {
		var line []Cell
		for y := 1; y <= g.size; y++ {
			x := y + off
			if x < 1 || x > g.size {
				continue
			}
			line = append(line, Cell{X: x, Y: y, Value: g.cells[y-1][x-1]})
		}
		if run := winningRun(line); run != nil {
			return run
		}
	}

	// Anti diagonals: cells where x+y is constant, same offset range.
	for off := 1 - g.size; off <= g.size-1; off++ {
		var line []Cell
		for y := 1; y <= g.size; y++ {
			x := g.size + 1 + off - y
			if x < 1 || x > g.size {
				continue
			}
			line = append(line, Cell{X: x, Y: y, Value: g.cells[y-1][x-1]})
		}
		if run := winningRun(line); run != nil {
			return run
		}
	}

	return nil
}

// winningRun slides a run counter over one line. The counter resets on
// an empty cell or a value change; the first WinLength cells of a
// qualifying run are returned.
func winningRun(line []Cell) []Cell {
	var run []Cell
	for _, c := range line {
		if c.Value == 0 {
			run = nil
			continue
		}
		if len(run) > 0 && run[len(run)-1].Value != c.Value {
			run = nil
		}
		run = append(run, c)
		if len(run) == WinLength {
			return run
		}
	}
	return nil
}

// Serialize encodes the grid as rows of digits joined by "/".
func (g *Grid) Serialize() string {
	var b strings.Builder
	for y, row := range g.cells {
		if y > 0 {
			b.WriteByte('/')
		}
		for _, v := range row {
			b.WriteByte('0' + byte(v))
		}
	}
	return b.String()
}

// ParseGrid decodes the Serialize form. The decoded shape must be
// square and every cell a digit.
func ParseGrid(s string) (*Grid, error) {
	rows := strings.Split(s, "/")
	size := len(rows)
	if s == "" {
		size = 0
		rows = nil
	}
	g := NewGrid(size)
	for y, row := range rows {
		if len(row) != size {
			return nil, ErrMalformedBoard
		}
		for x := 0; x < size; x++ {
			ch := row[x]
			if ch < '0' || ch > '9' {
				return nil, ErrMalformedBoard
			}
			g.cells[y][x] = int(ch - '0')
		}
	}
	return g, nil
}

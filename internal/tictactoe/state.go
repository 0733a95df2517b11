package tictactoe

import (
	"fmt"
	"strings"

	"github.com/rocketscienceinc/tictactoe-gym/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-gym/internal/entity"
)

const MinSize = 3

// directions - row/column steps of the four lines through a cell: horizontal, vertical, diagonal, anti-diagonal.
var directions = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

// State - a size×size grid of marks plus the run length needed to win.
type State struct {
	cells        []entity.Mark
	size         int
	winRunLength int
}

// New - creates an empty board. A zero winRunLength means a full row, column or diagonal.
func New(size, winRunLength int) (*State, error) {
	if size < MinSize {
		return nil, fmt.Errorf("%w: size %d is less than %d", apperror.ErrMisconfiguredBoard, size, MinSize)
	}

	if winRunLength == 0 {
		winRunLength = size
	}

	if winRunLength < 1 || winRunLength > size {
		return nil, fmt.Errorf("%w: win run length %d must be within [1, %d]", apperror.ErrMisconfiguredBoard, winRunLength, size)
	}

	return &State{
		cells:        make([]entity.Mark, size*size),
		size:         size,
		winRunLength: winRunLength,
	}, nil
}

func (that *State) Size() int {
	return that.size
}

func (that *State) WinRunLength() int {
	return that.winRunLength
}

// Cells - a copy of the grid, row by row.
func (that *State) Cells() entity.Observation {
	cells := make(entity.Observation, len(that.cells))
	copy(cells, that.cells)

	return cells
}

func (that *State) At(cell int) entity.Mark {
	if !that.inRange(cell) {
		return entity.Empty
	}

	return that.cells[cell]
}

// ApplyMove - marks the cell for the player. An occupied cell yields ErrIllegalMove and leaves the grid untouched.
func (that *State) ApplyMove(player entity.Mark, cell int) error {
	if !that.inRange(cell) {
		return fmt.Errorf("%w: cell %d not in [0, %d)", apperror.ErrInvalidActionIndex, cell, len(that.cells))
	}

	if !player.IsPlayer() {
		return fmt.Errorf("%w: %d", apperror.ErrInvalidPlayer, player)
	}

	if that.cells[cell] != entity.Empty {
		return fmt.Errorf("%w: cell %d", apperror.ErrIllegalMove, cell)
	}

	that.cells[cell] = player

	return nil
}

// CheckWin - reports whether the player owns winRunLength consecutive cells on any line.
func (that *State) CheckWin(player entity.Mark) bool {
	if !player.IsPlayer() {
		return false
	}

	for cell, mark := range that.cells {
		if mark != player {
			continue
		}

		row, col := cell/that.size, cell%that.size
		for _, dir := range directions {
			if that.runThrough(player, row, col, dir[0], dir[1]) >= that.winRunLength {
				return true
			}
		}
	}

	return false
}

// Winner - the player holding a winning run, or Empty.
func (that *State) Winner() entity.Mark {
	for _, player := range []entity.Mark{entity.Player1, entity.Player2} {
		if that.CheckWin(player) {
			return player
		}
	}

	return entity.Empty
}

func (that *State) IsFull() bool {
	for _, mark := range that.cells {
		if mark == entity.Empty {
			return false
		}
	}

	return true
}

// EmptyCells - legal cells in ascending order.
func (that *State) EmptyCells() []int {
	cells := make([]int, 0, len(that.cells))
	for cell, mark := range that.cells {
		if mark == entity.Empty {
			cells = append(cells, cell)
		}
	}

	return cells
}

func (that *State) Reset() {
	for i := range that.cells {
		that.cells[i] = entity.Empty
	}
}

// Key - canonical serialization of the grid, one digit per cell.
func (that *State) Key() string {
	return Key(that.cells)
}

// Key - canonical serialization of a flattened grid: '0' empty, '1' player one, '2' player two.
func Key(cells []entity.Mark) string {
	out := make([]byte, len(cells))
	for i, mark := range cells {
		out[i] = byte('0' + mark)
	}

	return string(out)
}

func (that *State) String() string {
	return Format(that.cells, that.size)
}

// Format - renders a flattened grid as rows of X, O and dots.
func Format(cells []entity.Mark, size int) string {
	var sb strings.Builder
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			if col > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(cells[row*size+col].String())
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}

// runThrough - counts the player's consecutive cells on the line through (row, col), origin included.
func (that *State) runThrough(player entity.Mark, row, col, dr, dc int) int {
	count := 1
	for _, sign := range [2]int{1, -1} {
		r, c := row+sign*dr, col+sign*dc
		for that.onBoard(r, c) && that.cells[r*that.size+c] == player {
			count++
			r += sign * dr
			c += sign * dc
		}
	}

	return count
}

func (that *State) onBoard(row, col int) bool {
	return row >= 0 && row < that.size && col >= 0 && col < that.size
}

func (that *State) inRange(cell int) bool {
	return cell >= 0 && cell < len(that.cells)
}

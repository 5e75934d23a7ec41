package entity

import (
	"fmt"

	"github.com/vasablaha/gomoku-tel/internal/apperror"
)

const (
	BoardSize = 15
	WinLength = 5
)

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"

	PlayerX = "X"
	PlayerO = "O"

	WinnerDraw = "draw"

	EmptyCell = ""
)

// The four scan axes: horizontal, vertical and both diagonals.
var axes = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

// Board is a 15x15 gomoku grid. The zero value is an empty board.
type Board [BoardSize][BoardSize]string

// Place - puts a mark on the cell, failing if the position is outside
// the board or the cell is taken. A placed mark is never cleared again
// within one round.
func (that *Board) Place(row, col int, mark string) error {
	if row < 0 || row >= BoardSize || col < 0 || col >= BoardSize {
		return fmt.Errorf("%w: (%d, %d)", apperror.ErrOutOfBounds, row, col)
	}

	if that[row][col] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	that[row][col] = mark

	return nil
}

// HasWin - reports whether the mark just placed at (row, col) completed
// five in a row. Only lines through the placed cell can have changed, so
// scanning both directions of each axis from that cell is enough.
func (that *Board) HasWin(row, col int, mark string) bool {
	for _, axis := range axes {
		count := 1
		count += that.countRay(row, col, axis[0], axis[1], mark)
		count += that.countRay(row, col, -axis[0], -axis[1], mark)

		if count >= WinLength {
			return true
		}
	}

	return false
}

// countRay - counts contiguous cells equal to mark walking from
// (row, col) in the given direction, excluding the starting cell.
func (that *Board) countRay(row, col, dRow, dCol int, mark string) int {
	count := 0

	r, c := row+dRow, col+dCol
	for r >= 0 && r < BoardSize && c >= 0 && c < BoardSize && that[r][c] == mark {
		count++
		r += dRow
		c += dCol
	}

	return count
}

// IsFull - reports whether no empty cell remains.
func (that *Board) IsFull() bool {
	for row := range that {
		for col := range that[row] {
			if that[row][col] == EmptyCell {
				return false
			}
		}
	}

	return true
}

// ToggleMark - returns the opposing mark.
func ToggleMark(mark string) string {
	if mark == PlayerX {
		return PlayerO
	}
	return PlayerX
}

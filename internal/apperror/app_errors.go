package apperror

import "errors"

var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameFull     = errors.New("game is full")
	ErrNotPlaying   = errors.New("game is not in progress")
	ErrNotYourTurn  = errors.New("it's not your turn")
	ErrOutOfBounds  = errors.New("position is outside the board")
	ErrCellOccupied = errors.New("cell is already occupied")
)

package apperror

import "errors"

var (
	ErrInvalidActionIndex = errors.New("action index is out of range")
	ErrIllegalMove        = errors.New("cell is already occupied")
	ErrMisconfiguredBoard = errors.New("misconfigured board")
	ErrInvalidPlayer      = errors.New("unknown player")
	ErrEpisodeFinished    = errors.New("episode is already finished")
)

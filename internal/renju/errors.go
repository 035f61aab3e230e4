package renju

import "errors"

// Domain failures. The texts follow the CODE: detail convention the
// wire layer forwards verbatim to the offending sender.
var (
	ErrNoMatchFound    = errors.New("NO_MATCH_FOUND: match not found")
	ErrNoEmptySeats    = errors.New("NO_EMPTY_SEATS: no player seat left in this match")
	ErrUnfinishedMatch = errors.New("UNFINISHED_MATCH: you already have an unfinished match")
	ErrNotInMatch      = errors.New("NOT_IN_MATCH: you have no seat in this match")
	ErrNotAPlayer      = errors.New("NOT_A_PLAYER: your seat is not a player seat")
	ErrUnsuitableState = errors.New("UNSUITABLE_STATE: match state does not allow this")
	ErrCellOccupied    = errors.New("CELL_OCCUPIED: cell already holds a stone")
	ErrOutOfBounds     = errors.New("OUT_OF_BOUNDS: coordinate outside the board")
	ErrMalformedBoard  = errors.New("MALFORMED_BOARD: board form is not a square digit grid")
)

// ErrFalseClick marks a stale move attempt (cell taken or not the
// sender's turn). It must stay silent: no state change, no notice.
var ErrFalseClick = errors.New("false click")

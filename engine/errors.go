package engine

import "errors"

// Rejection reasons. Commands wrap these with detail; callers test with errors.Is.
var (
	ErrWrongPhase        = errors.New("not allowed in this phase")
	ErrGameOver          = errors.New("game is already over")
	ErrRiftRowOutOfRange = errors.New("rifts can only be placed on rows 3, 4, 5 or 6")
	ErrRiftConflict      = errors.New("no two rifts can share the same row or column")
	ErrRiftsFull         = errors.New("all four rifts are already placed")
	ErrRiftsIncomplete   = errors.New("exactly four rifts are required")
	ErrRiftGeneration    = errors.New("could not generate a valid rift layout")
	ErrOffBoard          = errors.New("square is off the board")
	ErrNoPiece           = errors.New("no piece at source square")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrPieceFrozen       = errors.New("piece is frozen")
	ErrOwnPiece          = errors.New("cannot capture your own piece")
	ErrIllegalMove       = errors.New("illegal move for this piece")
	ErrPending           = errors.New("a rift effect must be resolved first")
	ErrExtraMoveRequired = errors.New("the gambit piece must move again")
	ErrKingMustMove      = errors.New("only the king may move again this turn")
	ErrNoRollPending     = errors.New("no rift is waiting for a roll")
	ErrAlreadyRolled     = errors.New("the rift die was already rolled this turn")
	ErrNoChoicePending   = errors.New("no choice is pending")
	ErrInvalidChoice     = errors.New("invalid choice")
	ErrCannotPass        = errors.New("the turn cannot be passed now")
)

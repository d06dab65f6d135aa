package apperror

import "errors"

var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrSelfChallenge    = errors.New("cannot send a game request to yourself")
	ErrDuplicateRequest = errors.New("game request already sent")
	ErrNotParticipant   = errors.New("caller is not part of this match")
	ErrMatchNotActive   = errors.New("match is not active")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrAlreadyMarked    = errors.New("number is already marked")
	ErrInvalidNumber    = errors.New("number is out of range")
	ErrTurnNotExpired   = errors.New("turn deadline has not expired yet")
	ErrVersionConflict  = errors.New("match was modified concurrently")
)

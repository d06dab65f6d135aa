package entity

import (
	"time"

	"github.com/playlinkhq/bingo-battle-backend/internal/apperror"
)

const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusStopped   = "stopped"
	StatusCompleted = "completed"

	RoleChallenger = "challenger"
	RoleOpponent   = "opponent"

	WinnerDraw = "draw"
)

// Match is the single source of truth for one Bingo contest. Both
// participants' views are projections of this record; every mutation goes
// through its validation.
type Match struct {
	ID             string     `json:"id"`
	Challenger     string     `json:"challenger"`
	Opponent       string     `json:"opponent"`
	Status         string     `json:"status"`
	ChallengerGrid []int      `json:"challengerGrid"`
	OpponentGrid   []int      `json:"opponentGrid"`
	MarkedNumbers  []int      `json:"markedNumbers"`
	Turn           string     `json:"turn,omitempty"`
	Winner         string     `json:"winner,omitempty"`
	TurnDeadline   *time.Time `json:"turnDeadline,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func NewMatch(id, challenger, opponent string, challengerGrid, opponentGrid []int) *Match {
	return &Match{
		ID:             id,
		Challenger:     challenger,
		Opponent:       opponent,
		Status:         StatusPending,
		ChallengerGrid: challengerGrid,
		OpponentGrid:   opponentGrid,
		MarkedNumbers:  []int{},
		CreatedAt:      time.Now().UTC(),
	}
}

func (that *Match) IsPending() bool {
	return that.Status == StatusPending
}

func (that *Match) IsAccepted() bool {
	return that.Status == StatusAccepted
}

func (that *Match) IsFinished() bool {
	return that.Status == StatusRejected || that.Status == StatusStopped || that.Status == StatusCompleted
}

func (that *Match) HasWinner() bool {
	return that.Winner != ""
}

// ConfirmActive reports whether moves and timeouts may be applied.
func (that *Match) ConfirmActive() error {
	if !that.IsAccepted() || that.HasWinner() {
		return apperror.ErrMatchNotActive
	}
	return nil
}

func (that *Match) IsParticipant(userID string) bool {
	return userID == that.Challenger || userID == that.Opponent
}

// Role maps a user id onto its side of the match, or "" for outsiders.
func (that *Match) Role(userID string) string {
	switch userID {
	case that.Challenger:
		return RoleChallenger
	case that.Opponent:
		return RoleOpponent
	default:
		return ""
	}
}

// TurnHolder returns the user id whose turn it currently is.
func (that *Match) TurnHolder() string {
	switch that.Turn {
	case RoleChallenger:
		return that.Challenger
	case RoleOpponent:
		return that.Opponent
	default:
		return ""
	}
}

// OtherParticipant returns the participant that is not userID.
func (that *Match) OtherParticipant(userID string) string {
	if userID == that.Challenger {
		return that.Opponent
	}
	return that.Challenger
}

// Start moves a pending match into play: the challenger opens, with a fresh
// turn deadline.
func (that *Match) Start(now time.Time, turnTimeout time.Duration) {
	that.Status = StatusAccepted
	that.Turn = RoleChallenger
	that.resetDeadline(now, turnTimeout)
}

// FlipTurn hands the turn to the other side and restarts its deadline.
func (that *Match) FlipTurn(now time.Time, turnTimeout time.Duration) {
	if that.Turn == RoleChallenger {
		that.Turn = RoleOpponent
	} else {
		that.Turn = RoleChallenger
	}
	that.resetDeadline(now, turnTimeout)
}

// Complete terminates the match with the given winner. The deadline is
// cleared so no further turn can expire.
func (that *Match) Complete(winner string) {
	that.Winner = winner
	that.Status = StatusCompleted
	that.Turn = ""
	that.TurnDeadline = nil
}

// Stop terminates the match because a participant left.
func (that *Match) Stop() {
	that.Status = StatusStopped
	that.Turn = ""
	that.TurnDeadline = nil
}

// DeadlineExpired reports whether the current turn is forfeit. A match
// without a deadline never expires.
func (that *Match) DeadlineExpired(now time.Time) bool {
	return that.TurnDeadline != nil && !now.Before(*that.TurnDeadline)
}

func (that *Match) resetDeadline(now time.Time, turnTimeout time.Duration) {
	deadline := now.Add(turnTimeout).UTC()
	that.TurnDeadline = &deadline
}

package bingo

import (
	"slices"
	"time"

	"github.com/playlinkhq/bingo-battle-backend/internal/apperror"
	"github.com/playlinkhq/bingo-battle-backend/internal/entity"
)

// LinesToWin is the number of completed lines a grid needs to win.
const LinesToWin = 5

// WinLines are the 12 canonical lines of a 5x5 board, expressed as indexes
// into the 25-cell grid sequence: 5 rows, 5 columns, 2 diagonals.
var WinLines = [12][5]int{
	{0, 1, 2, 3, 4},
	{5, 6, 7, 8, 9},
	{10, 11, 12, 13, 14},
	{15, 16, 17, 18, 19},
	{20, 21, 22, 23, 24},
	{0, 5, 10, 15, 20},
	{1, 6, 11, 16, 21},
	{2, 7, 12, 17, 22},
	{3, 8, 13, 18, 23},
	{4, 9, 14, 19, 24},
	{0, 6, 12, 18, 24},
	{4, 8, 12, 16, 20},
}

// MarkNumber applies one move for the given role: it validates the move,
// records the number and either completes the match or hands the turn to the
// other side with a fresh deadline.
func MarkNumber(match *entity.Match, role string, number int, now time.Time, turnTimeout time.Duration) error {
	if err := validateMove(match, role, number); err != nil {
		return err
	}

	match.MarkedNumbers = append(match.MarkedNumbers, number)
	updateMatchState(match, now, turnTimeout)

	return nil
}

// ApplyTimeout forfeits an expired turn to the other side.
func ApplyTimeout(match *entity.Match, now time.Time, turnTimeout time.Duration) error {
	if err := match.ConfirmActive(); err != nil {
		return err
	}

	if !match.DeadlineExpired(now) {
		return apperror.ErrTurnNotExpired
	}

	match.FlipTurn(now, turnTimeout)

	return nil
}

// CompletedLines counts the lines of grid whose five values are all marked.
func CompletedLines(grid, marked []int) int {
	count := 0
	for _, line := range WinLines {
		complete := true
		for _, idx := range line {
			if !slices.Contains(marked, grid[idx]) {
				complete = false
				break
			}
		}
		if complete {
			count++
		}
	}
	return count
}

// IsWinner reports whether grid has at least LinesToWin completed lines.
func IsWinner(grid, marked []int) bool {
	return CompletedLines(grid, marked) >= LinesToWin
}

// validateMove checks whether role may mark number right now.
func validateMove(match *entity.Match, role string, number int) error {
	if number < 1 || number > MaxNumber {
		return apperror.ErrInvalidNumber
	}

	if match.Turn != role || role == "" {
		return apperror.ErrNotYourTurn
	}

	if slices.Contains(match.MarkedNumbers, number) {
		return apperror.ErrAlreadyMarked
	}

	return nil
}

// updateMatchState evaluates both grids after a move. Marked numbers count
// for whichever grid contains them, so both sides can complete lines on the
// same move.
func updateMatchState(match *entity.Match, now time.Time, turnTimeout time.Duration) {
	challengerWins := IsWinner(match.ChallengerGrid, match.MarkedNumbers)
	opponentWins := IsWinner(match.OpponentGrid, match.MarkedNumbers)

	switch {
	case challengerWins && opponentWins:
		match.Complete(entity.WinnerDraw)
	case challengerWins:
		match.Complete(entity.RoleChallenger)
	case opponentWins:
		match.Complete(entity.RoleOpponent)
	default:
		match.FlipTurn(now, turnTimeout)
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playlinkhq/bingo-battle-backend/internal/apperror"
	"github.com/playlinkhq/bingo-battle-backend/internal/bingo"
	"github.com/playlinkhq/bingo-battle-backend/internal/entity"
	"github.com/playlinkhq/bingo-battle-backend/internal/notifier"
	"github.com/playlinkhq/bingo-battle-backend/internal/pkg"
)

type matchRepo interface {
	Create(ctx context.Context, match *entity.Match) error
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	Update(ctx context.Context, match *entity.Match) error
	FindPendingByPair(ctx context.Context, challengerID, opponentID string) (*entity.Match, error)
	ListPendingByUser(ctx context.Context, userID string) ([]*entity.Match, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

type eventNotifier interface {
	Notify(userID, event string, payload any)
}

// RequestStatus describes the pending-request relation between two users,
// from the caller's point of view.
type RequestStatus struct {
	HasSentRequest     bool `json:"hasSentRequest"`
	HasReceivedRequest bool `json:"hasReceivedRequest"`
}

// MatchManager drives a match through its whole lifecycle: request
// negotiation, turn-by-turn play with server-enforced deadlines, and
// termination. Every mutation is one atomic read-modify-write against the
// match record; both participants are notified of every transition.
type MatchManager struct {
	logger *slog.Logger

	matchRepo matchRepo
	userRepo  userRepo
	notifier  eventNotifier

	turnTimeout time.Duration
}

func NewMatchManager(logger *slog.Logger, matchRepo matchRepo, userRepo userRepo, notifier eventNotifier, turnTimeout time.Duration) *MatchManager {
	return &MatchManager{
		logger: logger,

		matchRepo: matchRepo,
		userRepo:  userRepo,
		notifier:  notifier,

		turnTimeout: turnTimeout,
	}
}

// CreateRequest opens a new challenge from challengerID to opponentID and
// notifies the opponent.
func (that *MatchManager) CreateRequest(ctx context.Context, challengerID, opponentID string) (*entity.Match, error) {
	log := that.logger.With("method", "CreateRequest")

	if challengerID == opponentID {
		return nil, apperror.ErrSelfChallenge
	}

	if _, err := that.userRepo.GetByID(ctx, challengerID); err != nil {
		return nil, fmt.Errorf("failed to resolve challenger: %w", err)
	}

	if _, err := that.userRepo.GetByID(ctx, opponentID); err != nil {
		return nil, fmt.Errorf("failed to resolve opponent: %w", err)
	}

	_, err := that.matchRepo.FindPendingByPair(ctx, challengerID, opponentID)
	if err == nil {
		return nil, apperror.ErrDuplicateRequest
	}
	if !errors.Is(err, apperror.ErrMatchNotFound) {
		return nil, fmt.Errorf("failed to check pending request: %w", err)
	}

	challengerGrid, opponentGrid := bingo.NewGridPair()
	match := entity.NewMatch(pkg.GenerateMatchID(), challengerID, opponentID, challengerGrid, opponentGrid)

	if err = that.matchRepo.Create(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	that.notifier.Notify(match.Opponent, notifier.EventNewGameRequest, matchPayload(match))

	log.Info("game request created", "match", match.ID, "challenger", match.Challenger, "opponent", match.Opponent)

	return match, nil
}

// Accept lets the invited opponent start the match. The challenger opens,
// with a fresh turn deadline.
func (that *MatchManager) Accept(ctx context.Context, matchID, callerID string) (*entity.Match, error) {
	match, err := that.mutate(ctx, matchID, func(match *entity.Match) error {
		if callerID != match.Opponent {
			return apperror.ErrNotParticipant
		}

		if !match.IsPending() {
			return apperror.ErrMatchNotActive
		}

		match.Start(time.Now(), that.turnTimeout)

		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := matchPayload(match)
	that.notifier.Notify(match.Challenger, notifier.EventGameRequestAccepted, payload)
	that.notifier.Notify(match.Opponent, notifier.EventGameRequestAccepted, payload)

	that.logger.Info("game request accepted", "method", "Accept", "match", match.ID)

	return match, nil
}

// Reject declines a pending challenge; only the challenger is notified.
func (that *MatchManager) Reject(ctx context.Context, matchID, callerID string) error {
	match, err := that.mutate(ctx, matchID, func(match *entity.Match) error {
		if callerID != match.Opponent {
			return apperror.ErrNotParticipant
		}

		if !match.IsPending() {
			return apperror.ErrMatchNotActive
		}

		match.Status = entity.StatusRejected

		return nil
	})
	if err != nil {
		return err
	}

	that.notifier.Notify(match.Challenger, notifier.EventGameRequestRejected, map[string]any{
		"matchId": match.ID,
		"status":  match.Status,
	})

	return nil
}

// Stop ends an active match because a participant left; the other side is
// told its opponent is gone.
func (that *MatchManager) Stop(ctx context.Context, matchID, callerID string) error {
	match, err := that.mutate(ctx, matchID, func(match *entity.Match) error {
		if !match.IsParticipant(callerID) {
			return apperror.ErrNotParticipant
		}

		if err := match.ConfirmActive(); err != nil {
			return err
		}

		match.Stop()

		return nil
	})
	if err != nil {
		return err
	}

	that.notifier.Notify(match.OtherParticipant(callerID), notifier.EventOpponentLeft, map[string]any{
		"matchId": match.ID,
		"status":  match.Status,
		"message": "Your opponent has exited the game",
	})

	return nil
}

// MarkNumber applies one move for the caller. An expired turn deadline is
// forfeited first, so a caller who overran its own turn fails with
// ErrNotYourTurn instead of sneaking a late move in.
func (that *MatchManager) MarkNumber(ctx context.Context, matchID, callerID string, number int) (*entity.Match, error) {
	log := that.logger.With("method", "MarkNumber")

	match, err := that.mutate(ctx, matchID, func(match *entity.Match) error {
		if err := match.ConfirmActive(); err != nil {
			return err
		}

		now := time.Now()

		if match.DeadlineExpired(now) {
			match.FlipTurn(now, that.turnTimeout)
		}

		return bingo.MarkNumber(match, match.Role(callerID), number, now, that.turnTimeout)
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"matchId":        match.ID,
		"number":         number,
		"markedNumbers":  match.MarkedNumbers,
		"currentPlayer":  match.Turn,
		"winner":         match.Winner,
		"timerExpiresAt": match.TurnDeadline,
	}
	that.notifier.Notify(match.Challenger, notifier.EventCellMarked, payload)
	that.notifier.Notify(match.Opponent, notifier.EventCellMarked, payload)

	if match.HasWinner() {
		log.Info("match completed", "match", match.ID, "winner", match.Winner)
	}

	return match, nil
}

// HandleTimeout forfeits the current turn after its deadline has passed.
// Clients call it when their local countdown fires; the server still verifies
// the deadline, so an early call cannot steal a turn.
func (that *MatchManager) HandleTimeout(ctx context.Context, matchID string) (*entity.Match, error) {
	match, err := that.mutate(ctx, matchID, func(match *entity.Match) error {
		return bingo.ApplyTimeout(match, time.Now(), that.turnTimeout)
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"matchId":        match.ID,
		"currentPlayer":  match.Turn,
		"timerExpiresAt": match.TurnDeadline,
	}
	that.notifier.Notify(match.Challenger, notifier.EventTurnSwitched, payload)
	that.notifier.Notify(match.Opponent, notifier.EventTurnSwitched, payload)

	that.logger.Info("turn forfeited on timeout", "method", "HandleTimeout", "match", match.ID, "turn", match.Turn)

	return match, nil
}

// PendingRequests lists matches that still await an answer and involve the
// user on either side.
func (that *MatchManager) PendingRequests(ctx context.Context, userID string) ([]*entity.Match, error) {
	matches, err := that.matchRepo.ListPendingByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}

	return matches, nil
}

// GetRequestStatus reports whether a pending request exists between the
// caller and peer, in either direction.
func (that *MatchManager) GetRequestStatus(ctx context.Context, callerID, peerID string) (*RequestStatus, error) {
	status := &RequestStatus{}

	_, err := that.matchRepo.FindPendingByPair(ctx, callerID, peerID)
	if err == nil {
		status.HasSentRequest = true
	} else if !errors.Is(err, apperror.ErrMatchNotFound) {
		return nil, fmt.Errorf("failed to check sent request: %w", err)
	}

	_, err = that.matchRepo.FindPendingByPair(ctx, peerID, callerID)
	if err == nil {
		status.HasReceivedRequest = true
	} else if !errors.Is(err, apperror.ErrMatchNotFound) {
		return nil, fmt.Errorf("failed to check received request: %w", err)
	}

	return status, nil
}

// mutate runs one read-validate-write cycle against a match. When a
// concurrent writer wins the version race, the cycle is retried once against
// the committed state, so the losing caller fails its validation instead of
// overwriting the winner's result.
func (that *MatchManager) mutate(ctx context.Context, matchID string, apply func(match *entity.Match) error) (*entity.Match, error) {
	for attempt := 0; ; attempt++ {
		match, err := that.matchRepo.GetByID(ctx, matchID)
		if err != nil {
			return nil, err
		}

		if err = apply(match); err != nil {
			return nil, err
		}

		err = that.matchRepo.Update(ctx, match)
		if err == nil {
			return match, nil
		}

		if !errors.Is(err, apperror.ErrVersionConflict) || attempt > 0 {
			return nil, fmt.Errorf("failed to update match: %w", err)
		}
	}
}

// matchPayload is the full board projection pushed on request creation and
// acceptance.
func matchPayload(match *entity.Match) map[string]any {
	return map[string]any{
		"matchId":        match.ID,
		"challenger":     match.Challenger,
		"opponent":       match.Opponent,
		"status":         match.Status,
		"player1Grid":    match.ChallengerGrid,
		"player2Grid":    match.OpponentGrid,
		"markedNumbers":  match.MarkedNumbers,
		"currentPlayer":  match.Turn,
		"timerExpiresAt": match.TurnDeadline,
	}
}

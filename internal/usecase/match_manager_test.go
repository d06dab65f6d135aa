package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/playlinkhq/bingo-battle-backend/internal/apperror"
	"github.com/playlinkhq/bingo-battle-backend/internal/bingo"
	"github.com/playlinkhq/bingo-battle-backend/internal/entity"
	"github.com/playlinkhq/bingo-battle-backend/internal/notifier"
)

const testTurnTimeout = 30 * time.Second

type mockMatchRepo struct {
	mock.Mock
}

func (that *mockMatchRepo) Create(ctx context.Context, match *entity.Match) error {
	args := that.Called(ctx, match)
	return args.Error(0)
}

func (that *mockMatchRepo) GetByID(ctx context.Context, id string) (*entity.Match, error) {
	args := that.Called(ctx, id)
	if match := args.Get(0); match != nil {
		return match.(*entity.Match), args.Error(1)
	}
	return nil, args.Error(1)
}

func (that *mockMatchRepo) Update(ctx context.Context, match *entity.Match) error {
	args := that.Called(ctx, match)
	return args.Error(0)
}

func (that *mockMatchRepo) FindPendingByPair(ctx context.Context, challengerID, opponentID string) (*entity.Match, error) {
	args := that.Called(ctx, challengerID, opponentID)
	if match := args.Get(0); match != nil {
		return match.(*entity.Match), args.Error(1)
	}
	return nil, args.Error(1)
}

func (that *mockMatchRepo) ListPendingByUser(ctx context.Context, userID string) ([]*entity.Match, error) {
	args := that.Called(ctx, userID)
	if matches := args.Get(0); matches != nil {
		return matches.([]*entity.Match), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (that *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	args := that.Called(ctx, id)
	if user := args.Get(0); user != nil {
		return user.(*entity.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (that *mockNotifier) Notify(userID, event string, payload any) {
	that.Called(userID, event, payload)
}

func newManager(t *testing.T) (*MatchManager, *mockMatchRepo, *mockUserRepo, *mockNotifier) {
	t.Helper()

	matchRepo := &mockMatchRepo{}
	userRepo := &mockUserRepo{}
	notif := &mockNotifier{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := NewMatchManager(logger, matchRepo, userRepo, notif, testTurnTimeout)

	t.Cleanup(func() {
		matchRepo.AssertExpectations(t)
		userRepo.AssertExpectations(t)
		notif.AssertExpectations(t)
	})

	return manager, matchRepo, userRepo, notif
}

func pendingMatch() *entity.Match {
	challengerGrid, opponentGrid := bingo.NewGridPair()
	return entity.NewMatch("m1", "alice", "bob", challengerGrid, opponentGrid)
}

func acceptedMatch() *entity.Match {
	match := pendingMatch()
	match.Start(time.Now(), testTurnTimeout)
	return match
}

func TestMatchManager_CreateRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("Self challenge is rejected before any lookup", func(t *testing.T) {
		manager, _, _, _ := newManager(t)

		// When: a user challenges itself
		match, err := manager.CreateRequest(ctx, "alice", "alice")

		// Then: the request fails without touching the repositories
		require.ErrorIs(t, err, apperror.ErrSelfChallenge)
		assert.Nil(t, match)
	})

	t.Run("Unknown opponent is rejected", func(t *testing.T) {
		manager, _, userRepo, _ := newManager(t)

		userRepo.On("GetByID", mock.Anything, "alice").Return(&entity.User{ID: "alice"}, nil).Once()
		userRepo.On("GetByID", mock.Anything, "ghost").Return(nil, apperror.ErrUserNotFound).Once()

		// When: challenging a user that does not exist
		_, err := manager.CreateRequest(ctx, "alice", "ghost")

		// Then: the identity error surfaces
		require.ErrorIs(t, err, apperror.ErrUserNotFound)
	})

	t.Run("Duplicate pending request is rejected", func(t *testing.T) {
		manager, matchRepo, userRepo, _ := newManager(t)

		userRepo.On("GetByID", mock.Anything, "alice").Return(&entity.User{ID: "alice"}, nil).Once()
		userRepo.On("GetByID", mock.Anything, "bob").Return(&entity.User{ID: "bob"}, nil).Once()
		matchRepo.On("FindPendingByPair", mock.Anything, "alice", "bob").Return(pendingMatch(), nil).Once()

		// When: the same ordered pair already has a pending request
		_, err := manager.CreateRequest(ctx, "alice", "bob")

		// Then: the duplicate is refused
		require.ErrorIs(t, err, apperror.ErrDuplicateRequest)
	})

	t.Run("Successful request persists a pending match and notifies the opponent", func(t *testing.T) {
		manager, matchRepo, userRepo, notif := newManager(t)

		userRepo.On("GetByID", mock.Anything, "alice").Return(&entity.User{ID: "alice"}, nil).Once()
		userRepo.On("GetByID", mock.Anything, "bob").Return(&entity.User{ID: "bob"}, nil).Once()
		matchRepo.On("FindPendingByPair", mock.Anything, "alice", "bob").Return(nil, apperror.ErrMatchNotFound).Once()
		matchRepo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Match")).Return(nil).Once()
		notif.On("Notify", "bob", notifier.EventNewGameRequest, mock.Anything).Once()

		// When: the request is created
		match, err := manager.CreateRequest(ctx, "alice", "bob")

		// Then: the match is pending with two distinct grids
		require.NoError(t, err)
		assert.NotEmpty(t, match.ID)
		assert.Equal(t, entity.StatusPending, match.Status)
		assert.Equal(t, "alice", match.Challenger)
		assert.Equal(t, "bob", match.Opponent)
		assert.Len(t, match.ChallengerGrid, bingo.GridSize)
		assert.Len(t, match.OpponentGrid, bingo.GridSize)
		assert.NotEqual(t, match.ChallengerGrid, match.OpponentGrid)
	})
}

func TestMatchManager_Accept(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown match", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		matchRepo.On("GetByID", mock.Anything, "missing").Return(nil, apperror.ErrMatchNotFound).Once()

		_, err := manager.Accept(ctx, "missing", "bob")

		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})

	t.Run("Only the invited opponent may accept", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		matchRepo.On("GetByID", mock.Anything, "m1").Return(pendingMatch(), nil).Once()

		// When: the challenger tries to accept its own request
		_, err := manager.Accept(ctx, "m1", "alice")

		// Then: the caller is refused and nothing is written
		require.ErrorIs(t, err, apperror.ErrNotParticipant)
		matchRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("Accepting a non-pending match fails", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		matchRepo.On("GetByID", mock.Anything, "m1").Return(acceptedMatch(), nil).Once()

		_, err := manager.Accept(ctx, "m1", "bob")

		require.ErrorIs(t, err, apperror.ErrMatchNotActive)
	})

	t.Run("Acceptance starts the match and notifies both sides", func(t *testing.T) {
		manager, matchRepo, _, notif := newManager(t)

		matchRepo.On("GetByID", mock.Anything, "m1").Return(pendingMatch(), nil).Once()
		matchRepo.On("Update", mock.Anything, mock.AnythingOfType("*entity.Match")).Return(nil).Once()
		notif.On("Notify", "alice", notifier.EventGameRequestAccepted, mock.Anything).Once()
		notif.On("Notify", "bob", notifier.EventGameRequestAccepted, mock.Anything).Once()

		// When: the opponent accepts
		match, err := manager.Accept(ctx, "m1", "bob")

		// Then: the challenger opens with a deadline one turn away
		require.NoError(t, err)
		assert.Equal(t, entity.StatusAccepted, match.Status)
		assert.Equal(t, entity.RoleChallenger, match.Turn)
		require.NotNil(t, match.TurnDeadline)
		assert.WithinDuration(t, time.Now().Add(testTurnTimeout), *match.TurnDeadline, time.Second)
	})
}

func TestMatchManager_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("Rejection notifies the challenger only", func(t *testing.T) {
		manager, matchRepo, _, notif := newManager(t)

		matchRepo.On("GetByID", mock.Anything, "m1").Return(pendingMatch(), nil).Once()
		matchRepo.On("Update", mock.Anything, mock.AnythingOfType("*entity.Match")).Return(nil).Once()
		notif.On("Notify", "alice", notifier.EventGameRequestRejected, mock.Anything).Once()

		// When: the opponent declines
		err := manager.Reject(ctx, "m1", "bob")

		require.NoError(t, err)
	})

	t.Run("Second rejection fails without further mutation", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		rejected := pendingMatch()
		rejected.Status = entity.StatusRejected
		matchRepo.On("GetByID", mock.Anything, "m1").Return(rejected, nil).Once()

		err := manager.Reject(ctx, "m1", "bob")

		require.ErrorIs(t, err, apperror.ErrMatchNotActive)
		matchRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestMatchManager_Stop(t *testing.T) {
	ctx := context.Background()

	t.Run("Outsider cannot stop a match", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		matchRepo.On("GetByID", mock.Anything, "m1").Return(acceptedMatch(), nil).Once()

		err := manager.Stop(ctx, "m1", "mallory")

		require.ErrorIs(t, err, apperror.ErrNotParticipant)
	})

	t.Run("Stopping notifies the other participant", func(t *testing.T) {
		manager, matchRepo, _, notif := newManager(t)

		matchRepo.On("GetByID", mock.Anything, "m1").Return(acceptedMatch(), nil).Once()
		matchRepo.On("Update", mock.Anything, mock.AnythingOfType("*entity.Match")).Return(nil).Once()
		notif.On("Notify", "bob", notifier.EventOpponentLeft, mock.Anything).Once()

		// When: the challenger leaves
		err := manager.Stop(ctx, "m1", "alice")

		require.NoError(t, err)
	})

	t.Run("Stopping an already stopped match fails", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		stopped := acceptedMatch()
		stopped.Stop()
		matchRepo.On("GetByID", mock.Anything, "m1").Return(stopped, nil).Once()

		err := manager.Stop(ctx, "m1", "alice")

		require.ErrorIs(t, err, apperror.ErrMatchNotActive)
	})
}

func TestMatchManager_MarkNumber(t *testing.T) {
	ctx := context.Background()

	t.Run("Marking in a pending match fails", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		matchRepo.On("GetByID", mock.Anything, "m1").Return(pendingMatch(), nil).Once()

		_, err := manager.MarkNumber(ctx, "m1", "alice", 7)

		require.ErrorIs(t, err, apperror.ErrMatchNotActive)
	})

	t.Run("Move out of turn marks nothing", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		match := acceptedMatch()
		matchRepo.On("GetByID", mock.Anything, "m1").Return(match, nil).Once()

		// When: the opponent moves on the challenger's turn
		_, err := manager.MarkNumber(ctx, "m1", "bob", 7)

		// Then: the move is refused and never persisted
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Empty(t, match.MarkedNumbers)
		matchRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("Successful move flips the turn and notifies both sides", func(t *testing.T) {
		manager, matchRepo, _, notif := newManager(t)

		matchRepo.On("GetByID", mock.Anything, "m1").Return(acceptedMatch(), nil).Once()
		matchRepo.On("Update", mock.Anything, mock.AnythingOfType("*entity.Match")).Return(nil).Once()
		notif.On("Notify", "alice", notifier.EventCellMarked, mock.Anything).Once()
		notif.On("Notify", "bob", notifier.EventCellMarked, mock.Anything).Once()

		// When: the challenger marks a number
		match, err := manager.MarkNumber(ctx, "m1", "alice", 7)

		// Then: the mark is recorded and the opponent is on turn
		require.NoError(t, err)
		assert.Equal(t, []int{7}, match.MarkedNumbers)
		assert.Equal(t, entity.RoleOpponent, match.Turn)
		assert.Empty(t, match.Winner)
	})

	t.Run("Expired deadline forfeits the slow caller's turn", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		// Given: the challenger is on turn but its deadline has passed
		match := acceptedMatch()
		past := time.Now().Add(-time.Second)
		match.TurnDeadline = &past

		matchRepo.On("GetByID", mock.Anything, "m1").Return(match, nil).Once()

		// When: the challenger finally moves
		_, err := manager.MarkNumber(ctx, "m1", "alice", 7)

		// Then: the turn was forfeited first and the late move is refused
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})

	t.Run("Expired deadline lets the waiting side move at once", func(t *testing.T) {
		manager, matchRepo, _, notif := newManager(t)

		match := acceptedMatch()
		past := time.Now().Add(-time.Second)
		match.TurnDeadline = &past

		matchRepo.On("GetByID", mock.Anything, "m1").Return(match, nil).Once()
		matchRepo.On("Update", mock.Anything, mock.AnythingOfType("*entity.Match")).Return(nil).Once()
		notif.On("Notify", "alice", notifier.EventCellMarked, mock.Anything).Once()
		notif.On("Notify", "bob", notifier.EventCellMarked, mock.Anything).Once()

		// When: the opponent moves after the challenger overran its turn
		result, err := manager.MarkNumber(ctx, "m1", "bob", 7)

		// Then: the forfeit and the move are applied together
		require.NoError(t, err)
		assert.Equal(t, []int{7}, result.MarkedNumbers)
		assert.Equal(t, entity.RoleChallenger, result.Turn)
	})

	t.Run("Winning move completes the match", func(t *testing.T) {
		manager, matchRepo, _, notif := newManager(t)

		// Given: the challenger's grid is one number short of its fifth line
		match := winnableMatch()

		matchRepo.On("GetByID", mock.Anything, "m1").Return(match, nil).Once()
		matchRepo.On("Update", mock.Anything, mock.AnythingOfType("*entity.Match")).Return(nil).Once()
		notif.On("Notify", "alice", notifier.EventCellMarked, mock.Anything).Once()
		notif.On("Notify", "bob", notifier.EventCellMarked, mock.Anything).Once()

		// When: the winning number is played
		result, err := manager.MarkNumber(ctx, "m1", "alice", 21)

		// Then: the challenger wins and the deadline is gone
		require.NoError(t, err)
		assert.Equal(t, entity.StatusCompleted, result.Status)
		assert.Equal(t, entity.RoleChallenger, result.Winner)
		assert.Nil(t, result.TurnDeadline)
	})

	t.Run("Racing loser re-validates against the committed state", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		// Given: the first write loses the version race; by the second read
		// the turn has moved on
		first := acceptedMatch()
		second := acceptedMatch()
		second.FlipTurn(time.Now(), testTurnTimeout)

		matchRepo.On("GetByID", mock.Anything, "m1").Return(first, nil).Once()
		matchRepo.On("Update", mock.Anything, first).Return(apperror.ErrVersionConflict).Once()
		matchRepo.On("GetByID", mock.Anything, "m1").Return(second, nil).Once()

		// When: the challenger's move races a concurrent mutation
		_, err := manager.MarkNumber(ctx, "m1", "alice", 7)

		// Then: the loser fails its turn check instead of overwriting
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})
}

func TestMatchManager_HandleTimeout(t *testing.T) {
	ctx := context.Background()

	t.Run("Timeout on a completed match fails", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		completed := acceptedMatch()
		completed.Complete(entity.RoleChallenger)
		matchRepo.On("GetByID", mock.Anything, "m1").Return(completed, nil).Once()

		_, err := manager.HandleTimeout(ctx, "m1")

		require.ErrorIs(t, err, apperror.ErrMatchNotActive)
	})

	t.Run("Timeout before the deadline is refused", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		matchRepo.On("GetByID", mock.Anything, "m1").Return(acceptedMatch(), nil).Once()

		_, err := manager.HandleTimeout(ctx, "m1")

		require.ErrorIs(t, err, apperror.ErrTurnNotExpired)
	})

	t.Run("Expired deadline flips the turn and notifies both sides", func(t *testing.T) {
		manager, matchRepo, _, notif := newManager(t)

		match := acceptedMatch()
		past := time.Now().Add(-time.Second)
		match.TurnDeadline = &past

		matchRepo.On("GetByID", mock.Anything, "m1").Return(match, nil).Once()
		matchRepo.On("Update", mock.Anything, mock.AnythingOfType("*entity.Match")).Return(nil).Once()
		notif.On("Notify", "alice", notifier.EventTurnSwitched, mock.Anything).Once()
		notif.On("Notify", "bob", notifier.EventTurnSwitched, mock.Anything).Once()

		// When: the timeout is reported
		result, err := manager.HandleTimeout(ctx, "m1")

		// Then: the opponent is on turn with a fresh deadline
		require.NoError(t, err)
		assert.Equal(t, entity.RoleOpponent, result.Turn)
		require.NotNil(t, result.TurnDeadline)
		assert.True(t, result.TurnDeadline.After(time.Now()))
	})
}

func TestMatchManager_GetRequestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Reports sent and received directions independently", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		matchRepo.On("FindPendingByPair", mock.Anything, "alice", "bob").Return(pendingMatch(), nil).Once()
		matchRepo.On("FindPendingByPair", mock.Anything, "bob", "alice").Return(nil, apperror.ErrMatchNotFound).Once()

		status, err := manager.GetRequestStatus(ctx, "alice", "bob")

		require.NoError(t, err)
		assert.True(t, status.HasSentRequest)
		assert.False(t, status.HasReceivedRequest)
	})

	t.Run("No pending request in either direction", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		matchRepo.On("FindPendingByPair", mock.Anything, "alice", "bob").Return(nil, apperror.ErrMatchNotFound).Once()
		matchRepo.On("FindPendingByPair", mock.Anything, "bob", "alice").Return(nil, apperror.ErrMatchNotFound).Once()

		status, err := manager.GetRequestStatus(ctx, "alice", "bob")

		require.NoError(t, err)
		assert.False(t, status.HasSentRequest)
		assert.False(t, status.HasReceivedRequest)
	})
}

func TestMatchManager_PendingRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("Lists matches awaiting an answer", func(t *testing.T) {
		manager, matchRepo, _, _ := newManager(t)

		expected := []*entity.Match{pendingMatch()}
		matchRepo.On("ListPendingByUser", mock.Anything, "alice").Return(expected, nil).Once()

		matches, err := manager.PendingRequests(ctx, "alice")

		require.NoError(t, err)
		assert.Equal(t, expected, matches)
	})
}

// winnableMatch returns an active match where the challenger's grid has rows
// 0..3 marked and the number 21 completes column 0 as the fifth line, while
// the opponent's grid keeps the values 22..25 spread over enough lines to
// stay below five.
func winnableMatch() *entity.Match {
	challengerGrid := make([]int, bingo.GridSize)
	for i := range challengerGrid {
		challengerGrid[i] = i + 1
	}

	opponentGrid := make([]int, bingo.GridSize)
	opponentGrid[0], opponentGrid[6], opponentGrid[12], opponentGrid[18] = 22, 23, 24, 25
	next := 1
	for i := range opponentGrid {
		if opponentGrid[i] == 0 {
			opponentGrid[i] = next
			next++
		}
	}

	match := entity.NewMatch("m1", "alice", "bob", challengerGrid, opponentGrid)
	match.Start(time.Now(), testTurnTimeout)
	for number := 1; number <= 20; number++ {
		match.MarkedNumbers = append(match.MarkedNumbers, number)
	}

	return match
}

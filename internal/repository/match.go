package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/playlinkhq/bingo-battle-backend/internal/apperror"
	"github.com/playlinkhq/bingo-battle-backend/internal/entity"
)

const (
	matchKeyPrefix       = "match:"
	pendingPairKeyPrefix = "pending_pair:"
	pendingUserKeyPrefix = "pending_user:"
)

type MatchRepository interface {
	Create(ctx context.Context, match *entity.Match) error
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	Update(ctx context.Context, match *entity.Match) error
	FindPendingByPair(ctx context.Context, challengerID, opponentID string) (*entity.Match, error)
	ListPendingByUser(ctx context.Context, userID string) ([]*entity.Match, error)
}

type dbMatch struct {
	client *redis.Client
}

func NewMatchRepository(client *redis.Client) MatchRepository {
	return &dbMatch{
		client: client,
	}
}

// Create persists a new pending match and indexes it for duplicate detection
// and per-user pending listings.
func (that *dbMatch) Create(ctx context.Context, match *entity.Match) error {
	matchJSON, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("could not marshal match: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, matchKeyPrefix+match.ID, matchJSON, 0)
		pipe.Set(ctx, pendingPairKey(match.Challenger, match.Opponent), match.ID, 0)
		pipe.SAdd(ctx, pendingUserKeyPrefix+match.Challenger, match.ID)
		pipe.SAdd(ctx, pendingUserKeyPrefix+match.Opponent, match.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}

	return nil
}

func (that *dbMatch) GetByID(ctx context.Context, id string) (*entity.Match, error) {
	response, err := that.client.Get(ctx, matchKeyPrefix+id).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get match by id: %w", err)
	}

	var existingMatch entity.Match
	if err = json.Unmarshal([]byte(response), &existingMatch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	return &existingMatch, nil
}

// Update writes the match back conditionally: the stored version must still
// equal the version the caller read, otherwise a concurrent writer won the
// race and ErrVersionConflict is returned. Matches leaving the pending state
// are dropped from the request indexes in the same transaction, so no
// half-applied state is ever visible.
func (that *dbMatch) Update(ctx context.Context, match *entity.Match) error {
	matchKey := matchKeyPrefix + match.ID

	err := that.client.Watch(ctx, func(tx *redis.Tx) error {
		response, err := tx.Get(ctx, matchKey).Result()
		if errors.Is(err, redis.Nil) {
			return apperror.ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get match by id: %w", err)
		}

		var stored entity.Match
		if err = json.Unmarshal([]byte(response), &stored); err != nil {
			return fmt.Errorf("failed to unmarshal match: %w", err)
		}

		if stored.Version != match.Version {
			return apperror.ErrVersionConflict
		}

		next := *match
		next.Version++

		matchJSON, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("could not marshal match: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, matchKey, matchJSON, 0)
			if next.Status != entity.StatusPending {
				pipe.Del(ctx, pendingPairKey(next.Challenger, next.Opponent))
				pipe.SRem(ctx, pendingUserKeyPrefix+next.Challenger, next.ID)
				pipe.SRem(ctx, pendingUserKeyPrefix+next.Opponent, next.ID)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to write match: %w", err)
		}

		match.Version = next.Version

		return nil
	}, matchKey)

	if errors.Is(err, redis.TxFailedErr) {
		return apperror.ErrVersionConflict
	}

	return err
}

// FindPendingByPair resolves the pending request sent by challengerID to
// opponentID, if one exists. The pair index is directional.
func (that *dbMatch) FindPendingByPair(ctx context.Context, challengerID, opponentID string) (*entity.Match, error) {
	matchID, err := that.client.Get(ctx, pendingPairKey(challengerID, opponentID)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get pending pair: %w", err)
	}

	match, err := that.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if !match.IsPending() {
		return nil, apperror.ErrMatchNotFound
	}

	return match, nil
}

func (that *dbMatch) ListPendingByUser(ctx context.Context, userID string) ([]*entity.Match, error) {
	matchIDs, err := that.client.SMembers(ctx, pendingUserKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending matches: %w", err)
	}

	matches := make([]*entity.Match, 0, len(matchIDs))
	for _, id := range matchIDs {
		match, err := that.GetByID(ctx, id)
		if errors.Is(err, apperror.ErrMatchNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if match.IsPending() {
			matches = append(matches, match)
		}
	}

	return matches, nil
}

func pendingPairKey(challengerID, opponentID string) string {
	return pendingPairKeyPrefix + challengerID + ":" + opponentID
}

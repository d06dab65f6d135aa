package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/playlinkhq/bingo-battle-backend/internal/apperror"
	"github.com/playlinkhq/bingo-battle-backend/internal/entity"
)

type UserRepository interface {
	Save(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

type dbUser struct {
	conn *sql.DB
}

func NewUserRepository(conn *sql.DB) UserRepository {
	return &dbUser{
		conn: conn,
	}
}

func (that *dbUser) Save(ctx context.Context, user *entity.User) error {
	query := `INSERT INTO users (id, username, full_name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username, full_name = excluded.full_name`

	if _, err := that.conn.ExecContext(ctx, query, user.ID, user.Username, user.FullName); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

func (that *dbUser) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := `SELECT id, username, full_name FROM users WHERE id = ?`

	var user entity.User
	err := that.conn.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Username, &user.FullName)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return &user, nil
}

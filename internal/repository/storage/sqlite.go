package storage

import (
	"context"
	"database/sql"
	"fmt"

	// register the SQLite driver with the database/sql package.
	_ "modernc.org/sqlite"
)

type SQLiteStorage struct {
	Connection *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}

	if err = conn.Ping(); err != nil {
		return nil, fmt.Errorf("can't connect to database: %w", err)
	}

	return &SQLiteStorage{Connection: conn}, nil
}

func (that *SQLiteStorage) Init(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT ''
	)`

	if _, err := that.Connection.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("can't create table: %w", err)
	}

	return nil
}

func (that *SQLiteStorage) Close() error {
	return that.Connection.Close()
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the global connection pool. Connect it once with ConnectDB.
var DB *pgxpool.Pool

// ConnectDB opens the global pool and verifies the server is reachable.
func ConnectDB(connStr string) error {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("unable to parse pgx config: %w", err)
	}

	DB, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return fmt.Errorf("unable to create pgx pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := DB.Ping(ctx); err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("db ping error: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS pinned_rooms (
	name     TEXT PRIMARY KEY,
	password TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS lobby_history (
	id          BIGSERIAL PRIMARY KEY,
	lobby_id    BIGINT NOT NULL,
	request_id  BIGINT NOT NULL,
	name        TEXT NOT NULL,
	variant     TEXT NOT NULL,
	map_id      INT NOT NULL,
	team_size   INT NOT NULL,
	spectators  TEXT NOT NULL,
	pick_ban    TEXT NOT NULL,
	members     BIGINT[] NOT NULL,
	host_handle TEXT NOT NULL,
	opened_at   TIMESTAMPTZ NOT NULL,
	closed_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (lobby_id, opened_at)
);
`

// EnsureSchema creates the tables used by the orchestrator when missing.
func EnsureSchema(ctx context.Context) error {
	if _, err := DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

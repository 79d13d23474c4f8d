package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PinnedRoom is a room that exists for the whole lifetime of the server.
type PinnedRoom struct {
	Name     string
	Password string
}

// ListPinnedRooms returns every configured pinned room ordered by name.
func ListPinnedRooms(ctx context.Context) ([]PinnedRoom, error) {
	rows, err := DB.Query(ctx, `SELECT name, password FROM pinned_rooms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pinned rooms: %w", err)
	}
	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PinnedRoom, error) {
		var r PinnedRoom
		err := row.Scan(&r.Name, &r.Password)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan pinned rooms: %w", err)
	}
	return rooms, nil
}

// UpsertPinnedRoom creates or re-keys a pinned room.
func UpsertPinnedRoom(ctx context.Context, room PinnedRoom) error {
	q := `INSERT INTO pinned_rooms (name, password) VALUES ($1, $2)
	      ON CONFLICT (name) DO UPDATE SET password = EXCLUDED.password`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, room.Name, room.Password)
		return err
	})
}

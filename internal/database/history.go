package database

import (
	"context"
	"fmt"

	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/jackc/pgx/v5"
)

const insertLobbyQ = `
	INSERT INTO lobby_history (
		lobby_id, request_id, name, variant,
		map_id, team_size, spectators, pick_ban,
		members, host_handle, opened_at, closed_at
	)
	VALUES ($1, $2, $3, $4,
	        $5, $6, $7, $8,
	        $9, $10, $11, $12)
	ON CONFLICT (lobby_id, opened_at) DO NOTHING
	`

// InsertLobbyRecord stores a closed lobby in lobby_history.
func InsertLobbyRecord(ctx context.Context, rec models.LobbyRecord) error {
	return InsertLobbyRecords(ctx, []models.LobbyRecord{rec})
}

// InsertLobbyRecords stores recs in a single transaction. Lobby ids restart
// with the process, so a record is identified by id and opening time;
// records already present are skipped.
func InsertLobbyRecords(ctx context.Context, recs []models.LobbyRecord) error {
	if len(recs) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertLobbyTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("lobby %d: %w", rec.LobbyID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert lobby history: %w", err)
	}
	return nil
}

func insertLobbyTx(ctx context.Context, tx pgx.Tx, rec models.LobbyRecord) error {
	members := rec.Members
	if members == nil {
		members = []int64{}
	}
	_, err := tx.Exec(ctx, insertLobbyQ,
		rec.LobbyID,
		rec.RequestID,
		rec.Name,
		rec.Variant,
		int(rec.Template.Map),
		rec.Template.TeamSize,
		string(rec.Template.SpectatorPolicy),
		rec.Template.PickBan.PickStrategy,
		members,
		rec.HostHandle,
		rec.OpenedAt,
		rec.ClosedAt,
	)
	return err
}

// RecentLobbies returns up to limit records, most recently closed first.
func RecentLobbies(ctx context.Context, limit int) ([]models.LobbyRecord, error) {
	q := `
	SELECT lobby_id, request_id, name, variant,
	       map_id, team_size, spectators,
	       members, host_handle, opened_at, closed_at
	FROM lobby_history
	ORDER BY closed_at DESC
	LIMIT $1
	`
	rows, err := DB.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lobby history: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.LobbyRecord, error) {
		var (
			r       models.LobbyRecord
			mapID   int
			specPol string
		)
		err := row.Scan(
			&r.LobbyID, &r.RequestID, &r.Name, &r.Variant,
			&mapID, &r.Template.TeamSize, &specPol,
			&r.Members, &r.HostHandle, &r.OpenedAt, &r.ClosedAt,
		)
		r.Template.Map = models.MapID(mapID)
		r.Template.SpectatorPolicy = models.SpectatorPolicy(specPol)
		return r, err
	})
}

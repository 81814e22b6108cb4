package store

import (
	"context"
	"fmt"
	"time"

	"github.com/foomo/sitemap-mcp/service/vo"
)

// AppendMove records move in the history of project. A zero MovedAt is set
// to the current time.
func (db *DB) AppendMove(ctx context.Context, project string, move vo.PageMove) error {
	if move.MovedAt == 0 {
		move.MovedAt = time.Now().UnixMilli()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO moves (project, page_id, from_parent_id, to_parent_id, idx, moved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, project, move.PageID, move.FromParentID, move.ToParentID, move.Index, move.MovedAt)
	if err != nil {
		return fmt.Errorf("store: append move: %w", err)
	}
	return nil
}

// ListMoves returns the move history of project, oldest first.
func (db *DB) ListMoves(ctx context.Context, project string) ([]vo.PageMove, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT page_id, from_parent_id, to_parent_id, idx, moved_at
		FROM moves WHERE project = ? ORDER BY seq
	`, project)
	if err != nil {
		return nil, fmt.Errorf("store: list moves: %w", err)
	}
	defer rows.Close()

	out := []vo.PageMove{}
	for rows.Next() {
		var m vo.PageMove
		if err := rows.Scan(&m.PageID, &m.FromParentID, &m.ToParentID, &m.Index, &m.MovedAt); err != nil {
			return nil, fmt.Errorf("store: scan move: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/foomo/sitemap-mcp/service/vo"
)

// SavePages upserts the project header and replaces its pages. Pages keep the
// order of the given slice.
func (db *DB) SavePages(ctx context.Context, p Project, pages []vo.Page) error {
	if p.CrawledAt.IsZero() {
		p.CrawledAt = time.Now()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (name, url, crawled_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			url        = excluded.url,
			crawled_at = excluded.crawled_at
	`, p.Name, p.URL, p.CrawledAt)
	if err != nil {
		return fmt.Errorf("store: upsert project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE project = ?`, p.Name); err != nil {
		return fmt.Errorf("store: clear pages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pages (project, id, position, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare page insert: %w", err)
	}
	defer stmt.Close()
	for i, page := range pages {
		data, err := json.Marshal(page)
		if err != nil {
			return fmt.Errorf("store: encode page %s: %w", page.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.Name, page.ID, i, string(data)); err != nil {
			return fmt.Errorf("store: insert page %s: %w", page.ID, err)
		}
	}

	return tx.Commit()
}

// LoadPages returns the stored pages of project in saved order.
func (db *DB) LoadPages(ctx context.Context, project string) ([]vo.Page, error) {
	if _, err := db.GetProject(ctx, project); err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT data FROM pages WHERE project = ? ORDER BY position, id`, project)
	if err != nil {
		return nil, fmt.Errorf("store: load pages: %w", err)
	}
	defer rows.Close()

	var out []vo.Page
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("store: scan page: %w", err)
		}
		var page vo.Page
		if err := json.Unmarshal([]byte(data), &page); err != nil {
			return nil, fmt.Errorf("store: decode page: %w", err)
		}
		out = append(out, page)
	}
	return out, rows.Err()
}

// PatchPage stores page under its id. A new page is appended after the
// existing ones.
func (db *DB) PatchPage(ctx context.Context, project string, page vo.Page) error {
	if _, err := db.GetProject(ctx, project); err != nil {
		return err
	}
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("store: encode page %s: %w", page.ID, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO pages (project, id, position, data)
		SELECT ?, ?, COALESCE(MAX(position), -1) + 1, ? FROM pages WHERE project = ?
		ON CONFLICT(project, id) DO UPDATE SET data = excluded.data
	`, project, page.ID, string(data), project)
	if err != nil {
		return fmt.Errorf("store: patch page %s: %w", page.ID, err)
	}
	return nil
}

func (db *DB) DeletePage(ctx context.Context, project, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM pages WHERE project = ? AND id = ?`, project, id)
	if err != nil {
		return fmt.Errorf("store: delete page %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: page %s: %w", id, ErrNotFound)
	}
	return nil
}

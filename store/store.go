// Package store persists crawled site maps, their edits and the move history
// of each project in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/foomo/sitemap-mcp/service/vo"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	name       TEXT PRIMARY KEY,
	url        TEXT NOT NULL DEFAULT '',
	crawled_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pages (
	project  TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
	id       TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	data     TEXT NOT NULL,
	PRIMARY KEY (project, id)
);

CREATE TABLE IF NOT EXISTS moves (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	project        TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
	page_id        TEXT NOT NULL,
	from_parent_id TEXT NOT NULL DEFAULT '',
	to_parent_id   TEXT NOT NULL DEFAULT '',
	idx            INTEGER NOT NULL DEFAULT 0,
	moved_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pages_position ON pages(project, position);
CREATE INDEX IF NOT EXISTS idx_moves_project ON moves(project, seq);
`

// Project is the header row of a crawled site map.
type Project struct {
	Name      string
	URL       string
	CrawledAt time.Time
}

// Store defines the persistence operations of the site map service.
// Consumers depend on this interface rather than on *DB.
type Store interface {
	// SavePages replaces the page list of p in one transaction.
	SavePages(ctx context.Context, p Project, pages []vo.Page) error
	GetProject(ctx context.Context, name string) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	LoadPages(ctx context.Context, project string) ([]vo.Page, error)
	// PatchPage overwrites a single stored page, inserting it if missing.
	PatchPage(ctx context.Context, project string, page vo.Page) error
	DeletePage(ctx context.Context, project, id string) error
	AppendMove(ctx context.Context, project string, move vo.PageMove) error
	ListMoves(ctx context.Context, project string) ([]vo.PageMove, error)
	Close() error
}

var _ Store = (*DB)(nil)

// DB is the SQLite implementation of Store.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database at dsn and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) GetProject(ctx context.Context, name string) (*Project, error) {
	var p Project
	err := db.conn.QueryRowContext(ctx,
		`SELECT name, url, crawled_at FROM projects WHERE name = ?`, name,
	).Scan(&p.Name, &p.URL, &p.CrawledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: project %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get project: %w", err)
	}
	return &p, nil
}

func (db *DB) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name, url, crawled_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Name, &p.URL, &p.CrawledAt); err != nil {
			return nil, fmt.Errorf("store: scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

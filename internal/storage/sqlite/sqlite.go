package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/FranksOps/nichescout/internal/storage"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS searches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	keyword TEXT NOT NULL,
	google_results_count INTEGER,
	niche_score INTEGER
);
`

// New opens the database at dsn and creates the searches table if missing.
// A single connection is used so in-memory databases survive between calls.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, s *storage.SavedSearch) (int64, error) {
	res, err := b.db.ExecContext(ctx,
		`INSERT INTO searches (keyword, google_results_count, niche_score) VALUES (?, ?, ?)`,
		s.Keyword, s.ResultCount, s.NicheScore,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: save: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: save: %w", err)
	}
	s.ID = id
	return id, nil
}

func (b *sqliteBackend) List(ctx context.Context) ([]storage.SavedSearch, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, keyword, google_results_count, niche_score FROM searches ORDER BY niche_score ASC NULLS LAST, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	results := []storage.SavedSearch{}
	for rows.Next() {
		var s storage.SavedSearch
		if err := rows.Scan(&s.ID, &s.Keyword, &s.ResultCount, &s.NicheScore); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	return results, nil
}

func (b *sqliteBackend) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM searches WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete %d: %w", id, err)
	}
	return n, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

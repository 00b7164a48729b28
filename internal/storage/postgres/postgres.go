package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/nichescout/internal/storage"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS searches (
	id BIGSERIAL PRIMARY KEY,
	keyword TEXT NOT NULL,
	google_results_count BIGINT,
	niche_score BIGINT
);
`

// New connects to dsn and creates the searches table if missing.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, s *storage.SavedSearch) (int64, error) {
	const query = `INSERT INTO searches (keyword, google_results_count, niche_score) VALUES ($1, $2, $3) RETURNING id`

	var id int64
	if err := b.pool.QueryRow(ctx, query, s.Keyword, s.ResultCount, s.NicheScore).Scan(&id); err != nil {
		return 0, fmt.Errorf("postgres: save: %w", err)
	}
	s.ID = id
	return id, nil
}

func (b *postgresBackend) List(ctx context.Context) ([]storage.SavedSearch, error) {
	const query = `SELECT id, keyword, google_results_count, niche_score FROM searches ORDER BY niche_score ASC NULLS LAST, id`

	rows, err := b.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()

	results := []storage.SavedSearch{}
	for rows.Next() {
		var s storage.SavedSearch
		if err := rows.Scan(&s.ID, &s.Keyword, &s.ResultCount, &s.NicheScore); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	return results, nil
}

func (b *postgresBackend) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM searches WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %d: %w", id, err)
	}
	return tag.RowsAffected(), nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/watchtracker/internal/db"
	"github.com/sells-group/watchtracker/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects a pool and wraps it in a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS watches (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	url        TEXT NOT NULL,
	site       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'Ready to scan',
	results    JSONB NOT NULL DEFAULT '[]'::jsonb,
	last_scan  TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_watches_site ON watches(site);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateWatch(ctx context.Context, w model.Watch) (*model.Watch, error) {
	if err := validateWatch(w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.Status == "" {
		w.Status = model.StatusReady
	}
	if w.Results == nil {
		w.Results = model.ResultSet{}
	}
	w.CreatedAt = time.Now().UTC()

	resultsJSON, err := encodeResults(w.Results)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO watches (id, name, url, site, status, results, last_scan, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.Name, w.URL, w.Site, w.Status, resultsJSON, w.LastScan, w.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert watch %s", w.Name)
	}
	return &w, nil
}

const postgresWatchColumns = `id, name, url, site, status, results, last_scan, created_at`

func (s *PostgresStore) GetWatch(ctx context.Context, id string) (*model.Watch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresWatchColumns+` FROM watches WHERE id = $1`, id)
	w, err := scanPostgresWatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, eris.Wrapf(err, "postgres: get watch %s", id)
	}
	return w, nil
}

func (s *PostgresStore) ListWatches(ctx context.Context, filter WatchFilter) ([]model.Watch, error) {
	query := `SELECT ` + postgresWatchColumns + ` FROM watches`
	var args []any

	if filter.Site != "" {
		args = append(args, filter.Site)
		query += ` WHERE site = $1`
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		if len(args) == 1 {
			query += ` LIMIT $1`
		} else {
			query += ` LIMIT $2`
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list watches")
	}
	defer rows.Close()

	watches := []model.Watch{}
	for rows.Next() {
		w, err := scanPostgresWatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan watch")
		}
		watches = append(watches, *w)
	}
	return watches, eris.Wrap(rows.Err(), "postgres: list watches iterate")
}

func (s *PostgresStore) DeleteWatch(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM watches WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete watch %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (s *PostgresStore) SaveScanResult(ctx context.Context, id string, results model.ResultSet, status string, at time.Time) error {
	resultsJSON, err := encodeResults(results)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE watches SET results = $1, status = $2, last_scan = $3 WHERE id = $4`,
		resultsJSON, status, at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save scan result %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE watches SET status = $1, last_scan = $2 WHERE id = $3`,
		status, at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func scanPostgresWatch(row pgx.Row) (*model.Watch, error) {
	var (
		w           model.Watch
		resultsJSON []byte
	)
	if err := row.Scan(&w.ID, &w.Name, &w.URL, &w.Site, &w.Status, &resultsJSON, &w.LastScan, &w.CreatedAt); err != nil {
		return nil, err
	}
	results, err := decodeResults(resultsJSON)
	if err != nil {
		return nil, err
	}
	w.Results = results
	return &w, nil
}

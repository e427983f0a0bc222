package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/watchtracker/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// sqliteTimeLayout is RFC 3339 with fixed-width fractional seconds so that
// stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS watches (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	url        TEXT NOT NULL,
	site       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'Ready to scan',
	results    TEXT NOT NULL DEFAULT '[]',
	last_scan  TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_watches_site ON watches(site);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateWatch(ctx context.Context, w model.Watch) (*model.Watch, error) {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO watches (id, name, url, site, status, results, last_scan, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.URL, w.Site, w.Status, string(resultsJSON), formatTime(w.LastScan), w.CreatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert watch %s", w.Name)
	}
	return &w, nil
}

const sqliteWatchColumns = `id, name, url, site, status, results, last_scan, created_at`

func (s *SQLiteStore) GetWatch(ctx context.Context, id string) (*model.Watch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteWatchColumns+` FROM watches WHERE id = ?`, id)
	w, err := scanSQLiteWatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, eris.Wrapf(err, "sqlite: get watch %s", id)
	}
	return w, nil
}

func (s *SQLiteStore) ListWatches(ctx context.Context, filter WatchFilter) ([]model.Watch, error) {
	query := `SELECT ` + sqliteWatchColumns + ` FROM watches WHERE 1=1`
	var args []any

	if filter.Site != "" {
		query += ` AND site = ?`
		args = append(args, filter.Site)
	}
	query += ` ORDER BY created_at ASC, rowid ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list watches")
	}
	defer rows.Close() //nolint:errcheck

	watches := []model.Watch{}
	for rows.Next() {
		w, err := scanSQLiteWatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan watch")
		}
		watches = append(watches, *w)
	}
	return watches, eris.Wrap(rows.Err(), "sqlite: list watches iterate")
}

func (s *SQLiteStore) DeleteWatch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watches WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete watch %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) SaveScanResult(ctx context.Context, id string, results model.ResultSet, status string, at time.Time) error {
	resultsJSON, err := encodeResults(results)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE watches SET results = ?, status = ?, last_scan = ? WHERE id = ?`,
		string(resultsJSON), status, at.UTC().Format(sqliteTimeLayout), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save scan result %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE watches SET status = ?, last_scan = ? WHERE id = ?`,
		status, at.UTC().Format(sqliteTimeLayout), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", id)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteWatch(row scannable) (*model.Watch, error) {
	var (
		w           model.Watch
		resultsJSON string
		lastScan    sql.NullString
		createdAt   string
	)
	if err := row.Scan(&w.ID, &w.Name, &w.URL, &w.Site, &w.Status, &resultsJSON, &lastScan, &createdAt); err != nil {
		return nil, err
	}

	results, err := decodeResults([]byte(resultsJSON))
	if err != nil {
		return nil, err
	}
	w.Results = results

	if lastScan.Valid && lastScan.String != "" {
		t, err := time.Parse(time.RFC3339Nano, lastScan.String)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: parse last_scan")
		}
		w.LastScan = &t
	}
	if w.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse created_at")
	}
	return &w, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(sqliteTimeLayout)
}

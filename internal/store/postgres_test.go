package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/watchtracker/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

var watchCols = []string{"id", "name", "url", "site", "status", "results", "last_scan", "created_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS watches`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateWatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO watches`).
		WithArgs(pgxmock.AnyArg(), "Constellation", "https://shop.example.com/s", "chrono24",
			model.StatusReady, []byte(`[]`), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	w, err := s.CreateWatch(context.Background(), model.NewWatch("Constellation", "https://shop.example.com/s", "chrono24"))
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, model.StatusReady, w.Status)
	assert.False(t, w.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateWatch_Invalid(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.CreateWatch(context.Background(), model.Watch{URL: "https://shop.example.com"})
	var ie *model.InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "name", ie.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetWatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scanned := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, name, url, site, status, results, last_scan, created_at FROM watches WHERE id = \$1`).
		WithArgs("w-1").
		WillReturnRows(pgxmock.NewRows(watchCols).
			AddRow("w-1", "Constellation", "https://shop.example.com/s", "", "Found (1)",
				[]byte(`["Omega Constellation 1970"]`), &scanned, created))

	w, err := s.GetWatch(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Equal(t, "Constellation", w.Name)
	assert.Equal(t, model.ResultSet{"Omega Constellation 1970"}, w.Results)
	require.NotNil(t, w.LastScan)
	assert.True(t, scanned.Equal(*w.LastScan))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetWatch_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM watches WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetWatch(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListWatches_BySite(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM watches WHERE site = \$1 ORDER BY created_at ASC, id ASC LIMIT \$2`).
		WithArgs("vinted", 10).
		WillReturnRows(pgxmock.NewRows(watchCols).
			AddRow("w-1", "Seiko", "https://a.example.com", "vinted", model.StatusReady, []byte(`[]`), (*time.Time)(nil), created).
			AddRow("w-2", "Tudor", "https://b.example.com", "vinted", model.StatusNothingFound, []byte(`[]`), (*time.Time)(nil), created))

	watches, err := s.ListWatches(context.Background(), WatchFilter{Site: "vinted", Limit: 10})
	require.NoError(t, err)
	require.Len(t, watches, 2)
	assert.Equal(t, "Tudor", watches[1].Name)
	assert.Nil(t, watches[0].LastScan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListWatches_All(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM watches ORDER BY created_at ASC, id ASC$`).
		WillReturnRows(pgxmock.NewRows(watchCols))

	watches, err := s.ListWatches(context.Background(), WatchFilter{})
	require.NoError(t, err)
	assert.NotNil(t, watches)
	assert.Empty(t, watches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveScanResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE watches SET results = \$1, status = \$2, last_scan = \$3 WHERE id = \$4`).
		WithArgs([]byte(`["Omega Constellation 1970","Omega Constellation 1985 NOS"]`), "Found (2)", at, "w-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SaveScanResult(context.Background(), "w-1",
		model.ResultSet{"Omega Constellation 1970", "Omega Constellation 1985 NOS"}, "Found (2)", at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveScanResult_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE watches SET results`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SaveScanResult(context.Background(), "gone", nil, model.StatusNothingFound, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE watches SET status = \$1, last_scan = \$2 WHERE id = \$3`).
		WithArgs(model.StatusTechError, pgxmock.AnyArg(), "w-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateStatus(context.Background(), "w-1", model.StatusTechError, time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteWatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM watches WHERE id = \$1`).
		WithArgs("w-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM watches WHERE id = \$1`).
		WithArgs("w-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteWatch(context.Background(), "w-1"))
	assert.ErrorIs(t, s.DeleteWatch(context.Background(), "w-1"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExecError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE watches SET status`).
		WillReturnError(errors.New("conn closed"))

	err := s.UpdateStatus(context.Background(), "w-1", model.StatusTechError, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: update status w-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/watchtracker/internal/model"
	"github.com/sells-group/watchtracker/internal/store"
)

type mockLister struct {
	watches []model.Watch
	err     error
}

func (m *mockLister) ListWatches(context.Context, store.WatchFilter) ([]model.Watch, error) {
	return m.watches, m.err
}

func scannedAt(t time.Time) *time.Time { return &t }

func TestCollector_Collect(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	lister := &mockLister{watches: []model.Watch{
		{ID: "1", Site: "vinted", Status: "Found (3)", LastScan: scannedAt(now.Add(-time.Hour))},
		{ID: "2", Site: "vinted", Status: model.StatusNothingFound, LastScan: scannedAt(now.Add(-48 * time.Hour))},
		{ID: "3", Site: "chrono24", Status: model.StatusTechError, LastScan: scannedAt(now.Add(-2 * time.Hour))},
		{ID: "4", Status: model.StatusReady},
	}}

	c := NewCollector(lister)
	c.now = func() time.Time { return now }

	snap, err := c.Collect(context.Background(), 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 1, snap.Found)
	assert.Equal(t, 1, snap.NothingFound)
	assert.Equal(t, 1, snap.Errored)
	assert.Equal(t, 1, snap.NeverScanned)
	assert.Equal(t, 1, snap.Stale)
	assert.InDelta(t, 1.0/3.0, snap.ErrorRate, 1e-9)
	assert.Equal(t, map[string]int{"vinted": 2, "chrono24": 1, "(none)": 1}, snap.Sites)
	assert.Equal(t, 24, snap.StaleAfterHours)
	assert.Equal(t, now, snap.CollectedAt)
}

func TestCollector_StaleCheckDisabled(t *testing.T) {
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCollector(&mockLister{watches: []model.Watch{
		{ID: "1", Status: "Found (1)", LastScan: &old},
	}})

	snap, err := c.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, snap.Stale)
	assert.Zero(t, snap.ErrorRate)
}

func TestCollector_Empty(t *testing.T) {
	snap, err := NewCollector(&mockLister{}).Collect(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.ErrorRate)
	assert.Empty(t, snap.Sites)
}

func TestCollector_ListError(t *testing.T) {
	_, err := NewCollector(&mockLister{err: errors.New("db down")}).Collect(context.Background(), time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list watches")
}

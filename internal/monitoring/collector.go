// Package monitoring summarizes the health of the stored watches.
package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/watchtracker/internal/model"
	"github.com/sells-group/watchtracker/internal/store"
)

// Snapshot holds a point-in-time view of watch health.
type Snapshot struct {
	Total        int `json:"total"`
	Found        int `json:"found"`
	NothingFound int `json:"nothing_found"`
	Errored      int `json:"errored"`
	NeverScanned int `json:"never_scanned"`
	// Stale counts scanned watches whose last scan is older than the window.
	Stale int `json:"stale"`
	// ErrorRate is Errored over scanned watches.
	ErrorRate float64        `json:"error_rate"`
	Sites     map[string]int `json:"sites"`

	StaleAfterHours int       `json:"stale_after_hours"`
	CollectedAt     time.Time `json:"collected_at"`
}

// WatchLister is the store method the collector needs.
type WatchLister interface {
	ListWatches(ctx context.Context, filter store.WatchFilter) ([]model.Watch, error)
}

// Collector gathers watch metrics from the store.
type Collector struct {
	store WatchLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st WatchLister) *Collector {
	return &Collector{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Collect gathers a snapshot over every watch. A watch scanned longer than
// staleAfter ago counts as stale; zero disables the check.
func (c *Collector) Collect(ctx context.Context, staleAfter time.Duration) (*Snapshot, error) {
	watches, err := c.store.ListWatches(ctx, store.WatchFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list watches")
	}

	now := c.now()
	snap := &Snapshot{
		Total:           len(watches),
		Sites:           make(map[string]int),
		StaleAfterHours: int(staleAfter / time.Hour),
		CollectedAt:     now,
	}

	for _, w := range watches {
		site := w.Site
		if site == "" {
			site = "(none)"
		}
		snap.Sites[site]++

		if w.LastScan == nil {
			snap.NeverScanned++
			continue
		}
		if staleAfter > 0 && now.Sub(*w.LastScan) > staleAfter {
			snap.Stale++
		}

		switch {
		case w.Status == model.StatusTechError:
			snap.Errored++
		case w.Status == model.StatusNothingFound:
			snap.NothingFound++
		case strings.HasPrefix(w.Status, "Found"):
			snap.Found++
		}
	}

	if scanned := snap.Total - snap.NeverScanned; scanned > 0 {
		snap.ErrorRate = float64(snap.Errored) / float64(scanned)
	}
	return snap, nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/watchtracker/internal/model"
)

// ErrNotFound is returned (wrapped) when a watch id does not exist.
var ErrNotFound = eris.New("store: not found")

// WatchFilter specifies criteria for listing watches.
type WatchFilter struct {
	Site  string `json:"site,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for watches.
type Store interface {
	CreateWatch(ctx context.Context, w model.Watch) (*model.Watch, error)
	GetWatch(ctx context.Context, id string) (*model.Watch, error)
	ListWatches(ctx context.Context, filter WatchFilter) ([]model.Watch, error)
	DeleteWatch(ctx context.Context, id string) error

	// SaveScanResult replaces the watch's result set wholesale and records
	// status and scan time.
	SaveScanResult(ctx context.Context, id string, results model.ResultSet, status string, at time.Time) error
	// UpdateStatus records status and scan time, leaving results untouched.
	UpdateStatus(ctx context.Context, id string, status string, at time.Time) error

	Migrate(ctx context.Context) error
	Close() error
}

func notFound(id string) error {
	return fmt.Errorf("%w: watch %s", ErrNotFound, id)
}

func encodeResults(r model.ResultSet) ([]byte, error) {
	if r == nil {
		r = model.ResultSet{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal results")
	}
	return b, nil
}

func decodeResults(b []byte) (model.ResultSet, error) {
	r := model.ResultSet{}
	if len(b) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal results")
	}
	if r == nil {
		r = model.ResultSet{}
	}
	return r, nil
}

func validateWatch(w model.Watch) error {
	if w.Name == "" {
		return model.NewInputError("name", "is required")
	}
	if w.URL == "" {
		return model.NewInputError("url", "is required")
	}
	return nil
}

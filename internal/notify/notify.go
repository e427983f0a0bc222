// Package notify delivers new-item notifications to email, Telegram and
// webhook sinks.
package notify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watchtracker/internal/model"
)

// Notification describes new items found for one watch.
type Notification struct {
	WatchID       string          `json:"watchId,omitempty"`
	WatchName     string          `json:"watchName"`
	URL           string          `json:"url"`
	NewItems      model.ResultSet `json:"newItems"`
	PreviousItems model.ResultSet `json:"previousItems"`
	ScannedAt     time.Time       `json:"scannedAt"`
}

// Notifier sends a notification to one sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// Multi fans a notification out to every sink. A failing sink does not
// stop delivery to the others.
type Multi []Notifier

// Name implements Notifier.
func (m Multi) Name() string { return "multi" }

// Notify implements Notifier. It returns an error naming how many sinks failed.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	failed := 0
	for _, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			failed++
			zap.L().Error("notify: sink failed",
				zap.String("sink", sink.Name()),
				zap.String("watch", n.WatchName),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("notify: sent",
			zap.String("sink", sink.Name()),
			zap.String("watch", n.WatchName),
			zap.Int("new_items", len(n.NewItems)),
		)
	}
	if failed > 0 {
		return eris.Errorf("notify: %d of %d sinks failed", failed, len(m))
	}
	return nil
}

// Nop discards notifications. Used when no sink is configured.
type Nop struct{}

// Name implements Notifier.
func (Nop) Name() string { return "nop" }

// Notify implements Notifier.
func (Nop) Notify(context.Context, Notification) error { return nil }

// Package tracker runs scans for stored watches: it loads the previous
// snapshot, invokes the scan engine, persists the new snapshot and notifies
// when new items appear.
package tracker

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/watchtracker/internal/model"
	"github.com/sells-group/watchtracker/internal/notify"
	"github.com/sells-group/watchtracker/internal/resilience"
	"github.com/sells-group/watchtracker/internal/store"
)

// Scanner runs one scan. *scan.Engine implements it.
type Scanner interface {
	ScanItem(ctx context.Context, t model.ScanTarget) (*model.ScanOutcome, error)
}

// Options configures a Service.
type Options struct {
	// Concurrency bounds the watches scanned at once during a cycle.
	Concurrency int
	// Retry applies to store writes.
	Retry resilience.Policy
}

// Service coordinates scans with persistence and notification.
type Service struct {
	store    store.Store
	loose    Scanner
	strict   Scanner
	notifier notify.Notifier
	opts     Options
	locks    *keyedMutex
	now      func() time.Time
}

// New creates a Service. loose serves scheduled scans, strict serves ad hoc checks.
func New(st store.Store, loose, strict Scanner, n notify.Notifier, opts Options) *Service {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Service{
		store:    st,
		loose:    loose,
		strict:   strict,
		notifier: n,
		opts:     opts,
		locks:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CheckRequest is an ad hoc scan of a URL for a match name. WatchID is optional.
type CheckRequest struct {
	URL       string
	MatchName string
	WatchID   string
}

// CheckResult is the caller-facing summary of an ad hoc scan.
type CheckResult struct {
	Status        string          `json:"status"`
	PagesScanned  int             `json:"pagesScanned"`
	Results       model.ResultSet `json:"results"`
	NewItemsCount int             `json:"newItemsCount"`
	Partial       bool            `json:"partial,omitempty"`
}

// Check runs a strict scan. With a WatchID the watch's snapshot is diffed,
// replaced and its status updated; without one nothing is read or written
// and every fragment counts as new.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	if strings.TrimSpace(req.MatchName) == "" {
		return nil, model.NewInputError("matchName", "is required")
	}

	var (
		out *model.ScanOutcome
		err error
	)
	if req.WatchID == "" {
		target := model.ScanTarget{URL: req.URL, MatchKey: req.MatchName}
		out, err = s.strict.ScanItem(ctx, target)
		if err != nil {
			return nil, err
		}
		s.notify(ctx, notificationFor(model.Watch{Name: req.MatchName, URL: req.URL}, out))
	} else {
		out, err = s.scanStored(ctx, req.WatchID, req.MatchName, req.URL, s.strict)
		if err != nil {
			return nil, err
		}
	}

	return &CheckResult{
		Status:        model.NewItemsStatus(len(out.NewItems)),
		PagesScanned:  out.PagesScanned,
		Results:       out.CurrentResults,
		NewItemsCount: len(out.NewItems),
		Partial:       out.Partial,
	}, nil
}

// ScanWatch runs a loose scan of a stored watch. Non-empty name and url
// override the stored values for this scan.
func (s *Service) ScanWatch(ctx context.Context, id, name, url string) (*model.ScanOutcome, error) {
	return s.scanStored(ctx, id, name, url, s.loose)
}

// CycleReport counts the outcome of a cycle.
type CycleReport struct {
	Total     int   `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// RunCycle scans every watch whose site matches (all watches when site is
// empty). Individual failures are counted, never returned.
func (s *Service) RunCycle(ctx context.Context, site string) (*CycleReport, error) {
	watches, err := s.store.ListWatches(ctx, store.WatchFilter{Site: site})
	if err != nil {
		return nil, eris.Wrap(err, "tracker: list watches")
	}

	report := &CycleReport{Total: len(watches)}
	if len(watches) == 0 {
		zap.L().Info("tracker: no watches to scan", zap.String("site", site))
		return report, nil
	}

	zap.L().Info("tracker: cycle started",
		zap.String("site", site),
		zap.Int("watches", len(watches)),
		zap.Int("concurrency", s.opts.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	var succeeded, failed atomic.Int64
	for _, w := range watches {
		g.Go(func() error {
			if _, err := s.scanStored(gctx, w.ID, "", "", s.loose); err != nil {
				failed.Add(1)
				return nil // one watch never aborts the cycle
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Succeeded = succeeded.Load()
	report.Failed = failed.Load()
	zap.L().Info("tracker: cycle complete",
		zap.String("site", site),
		zap.Int("total", report.Total),
		zap.Int64("succeeded", report.Succeeded),
		zap.Int64("failed", report.Failed),
	)
	return report, nil
}

// scanStored serializes scans per watch, then loads, scans, persists and notifies.
func (s *Service) scanStored(ctx context.Context, id, name, url string, scanner Scanner) (*model.ScanOutcome, error) {
	log := zap.L().With(zap.String("watch_id", id))

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		log.Warn("tracker: gave up waiting for in-flight scan", zap.Error(err))
		return nil, err
	}
	defer unlock()

	w, err := s.store.GetWatch(ctx, id)
	if err != nil {
		log.Error("tracker: load watch failed", zap.Error(err))
		return nil, err
	}
	if name != "" {
		w.Name = name
	}
	if url != "" {
		w.URL = url
	}
	log = log.With(zap.String("watch", w.Name))

	out, err := scanner.ScanItem(ctx, w.Target())
	if err != nil {
		log.Error("tracker: scan failed", zap.Error(err))
		var ie *model.InputError
		if !errors.As(err, &ie) && ctx.Err() == nil {
			s.recordFailure(ctx, log, id)
		}
		return nil, err
	}

	status := model.ResultStatus(out.CurrentResults)
	err = resilience.Do(ctx, s.retryPolicy("save scan result"), func(ctx context.Context) error {
		return s.store.SaveScanResult(ctx, id, out.CurrentResults, status, s.now())
	})
	if err != nil {
		log.Error("tracker: persist scan failed", zap.Error(err))
		return nil, eris.Wrapf(err, "tracker: save scan result %s", id)
	}

	if out.HasNewItems() {
		s.notify(ctx, notificationFor(*w, out))
	}
	return out, nil
}

// recordFailure marks the watch as errored, leaving its results untouched.
func (s *Service) recordFailure(ctx context.Context, log *zap.Logger, id string) {
	err := resilience.Do(ctx, s.retryPolicy("update status"), func(ctx context.Context) error {
		return s.store.UpdateStatus(ctx, id, model.StatusTechError, s.now())
	})
	if err != nil {
		log.Warn("tracker: record failure status failed", zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, n notify.Notification) {
	if len(n.NewItems) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		zap.L().Warn("tracker: notification failed",
			zap.String("watch", n.WatchName),
			zap.Error(err),
		)
	}
}

func (s *Service) retryPolicy(operation string) resilience.Policy {
	p := s.opts.Retry
	p.OnRetry = resilience.RetryLogger(operation)
	return p
}

func notificationFor(w model.Watch, out *model.ScanOutcome) notify.Notification {
	return notify.Notification{
		WatchID:       w.ID,
		WatchName:     w.Name,
		URL:           w.URL,
		NewItems:      out.NewItems,
		PreviousItems: w.Results,
		ScannedAt:     time.Now().UTC(),
	}
}

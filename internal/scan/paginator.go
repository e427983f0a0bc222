package scan

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/watchtracker/internal/extract"
	"github.com/sells-group/watchtracker/internal/fetcher"
	"github.com/sells-group/watchtracker/internal/resilience"
)

// Options configures pagination and matching.
type Options struct {
	MaxPages  int
	PageParam string
	Pacing    time.Duration
	// PageRetries is the number of extra attempts for a page whose fetch
	// failed transiently. Zero means a failed page ends pagination at once.
	PageRetries int
	RetryPolicy resilience.Policy
	Extract     extract.Options
}

// DefaultOptions returns three pages, one second apart, loose matching.
func DefaultOptions() Options {
	return Options{
		MaxPages:  3,
		PageParam: "page",
		Pacing:    time.Second,
		Extract:   extract.DefaultOptions(),
	}
}

// PageScan is what one pass over a listing's pages produced.
type PageScan struct {
	Fragments    []string
	PagesScanned int
	// FailedPage is the page whose fetch ended pagination, or 0.
	FailedPage int
	Err        error
}

// Paginator walks pages 1..MaxPages of a listing sequentially.
type Paginator struct {
	fetcher fetcher.Fetcher
	opts    Options
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPaginator creates a Paginator over f.
func NewPaginator(f fetcher.Fetcher, opts Options) *Paginator {
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.PageParam == "" {
		opts.PageParam = "page"
	}
	return &Paginator{fetcher: f, opts: opts, sleep: sleepCtx}
}

// ScanPages fetches and extracts each page in turn. A transport failure ends
// pagination and is reported in PageScan.Err with whatever was gathered.
// An empty first page ends pagination. The returned error is non-nil only
// for invalid input or a done context.
func (p *Paginator) ScanPages(ctx context.Context, baseURL, matchKey string) (*PageScan, error) {
	res := &PageScan{Fragments: []string{}}
	log := zap.L().With(zap.String("url", baseURL), zap.String("match_key", matchKey))

	for n := 1; n <= p.opts.MaxPages; n++ {
		pageURL, err := fetcher.WithPage(baseURL, p.opts.PageParam, n)
		if err != nil {
			return nil, err
		}

		res.PagesScanned = n
		page, err := p.fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			var te *fetcher.TransportError
			if !errors.As(err, &te) {
				return res, err
			}
			log.Warn("scan: page fetch failed, stopping pagination",
				zap.Int("page", n), zap.Int("status", te.StatusCode), zap.Error(err))
			res.FailedPage = n
			res.Err = err
			return res, nil
		}

		frags, err := extract.Extract(page.Body, matchKey, p.opts.Extract)
		if err != nil {
			log.Warn("scan: unreadable page, stopping pagination", zap.Int("page", n), zap.Error(err))
			res.FailedPage = n
			res.Err = err
			return res, nil
		}
		res.Fragments = append(res.Fragments, frags...)
		log.Debug("scan: page extracted", zap.Int("page", n), zap.Int("fragments", len(frags)))

		if n == 1 && len(frags) == 0 {
			break
		}
		if n < p.opts.MaxPages && p.opts.Pacing > 0 {
			if err := p.sleep(ctx, p.opts.Pacing); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (p *Paginator) fetch(ctx context.Context, pageURL string) (*fetcher.Page, error) {
	if p.opts.PageRetries <= 0 {
		return p.fetcher.Fetch(ctx, pageURL)
	}
	policy := p.opts.RetryPolicy
	policy.MaxAttempts = p.opts.PageRetries + 1
	policy.ShouldRetry = func(err error) bool {
		var te *fetcher.TransportError
		return errors.As(err, &te) && te.Transient()
	}
	policy.OnRetry = resilience.RetryLogger("fetch page")
	return resilience.DoVal(ctx, policy, func(ctx context.Context) (*fetcher.Page, error) {
		return p.fetcher.Fetch(ctx, pageURL)
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

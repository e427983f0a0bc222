// Package scan walks a listing's pages, extracts matching fragments and
// diffs them against the previous snapshot.
package scan

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/watchtracker/internal/fetcher"
	"github.com/sells-group/watchtracker/internal/model"
)

// ScanError is a scan that produced no usable outcome: the first page could
// not be fetched, or the context ended the scan.
type ScanError struct {
	URL      string
	Page     int
	Canceled bool
	Cause    error
}

func (e *ScanError) Error() string {
	if e.Canceled {
		return fmt.Sprintf("scan %s: canceled: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("scan %s: page %d: %v", e.URL, e.Page, e.Cause)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// Engine runs single-item scans. It holds no state between calls and is
// safe for concurrent use on different items.
type Engine struct {
	pager *Paginator
	opts  Options
}

// NewEngine creates an Engine fetching through f.
func NewEngine(f fetcher.Fetcher, opts Options) *Engine {
	return &Engine{pager: NewPaginator(f, opts), opts: opts}
}

// Strict returns an Engine that additionally requires fragments to be at
// least as long as the match key.
func (e *Engine) Strict() *Engine {
	opts := e.opts
	opts.Extract = opts.Extract.Strict()
	return NewEngine(e.pager.fetcher, opts)
}

// ScanItem scans t and diffs the result against t.PreviousResults.
// A failure past page 1 yields a partial outcome; a failure on page 1 or a
// done context yields *ScanError. Invalid input yields *model.InputError.
func (e *Engine) ScanItem(ctx context.Context, t model.ScanTarget) (*model.ScanOutcome, error) {
	if strings.TrimSpace(t.MatchKey) == "" {
		return nil, model.NewInputError("matchKey", "is required")
	}
	if _, err := fetcher.ValidateURL(t.URL); err != nil {
		return nil, err
	}

	ps, err := e.pager.ScanPages(ctx, t.URL, t.MatchKey)
	if err != nil {
		if ctx.Err() != nil {
			page := 0
			if ps != nil {
				page = ps.PagesScanned
			}
			return nil, &ScanError{URL: t.URL, Page: page, Canceled: true, Cause: ctx.Err()}
		}
		return nil, err
	}
	if ps.Err != nil && ps.FailedPage == 1 {
		return nil, &ScanError{URL: t.URL, Page: 1, Cause: ps.Err}
	}

	d := Diff(ps.Fragments, t.PreviousResults)
	out := &model.ScanOutcome{
		CurrentResults: d.Current,
		NewItems:       d.New,
		PagesScanned:   ps.PagesScanned,
		Partial:        ps.Err != nil,
	}

	zap.L().Info("scan: complete",
		zap.String("url", t.URL),
		zap.String("match_key", t.MatchKey),
		zap.Int("pages", out.PagesScanned),
		zap.Int("results", len(out.CurrentResults)),
		zap.Int("new_items", len(out.NewItems)),
		zap.Bool("partial", out.Partial),
	)
	return out, nil
}

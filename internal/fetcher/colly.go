package fetcher

import (
	"context"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CollyFetcher implements Fetcher with a gocolly collector.
// Each Fetch builds its own collector bound to the caller's context.
type CollyFetcher struct {
	opts HTTPOptions
}

// NewCollyFetcher creates a CollyFetcher. HostRate and RateLimiters are ignored;
// pacing between pages is left to the caller.
func NewCollyFetcher(opts HTTPOptions) *CollyFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &CollyFetcher{opts: opts}
}

// Fetch implements Fetcher.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if _, err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(f.opts.UserAgent),
		colly.MaxBodySize(int(f.opts.MaxBodyBytes)),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(f.opts.Timeout)

	var page *Page
	c.OnRequest(func(r *colly.Request) {
		setBrowserHeaders(*r.Headers, f.opts.UserAgent)
	})
	// Every status reaches OnResponse; 2xx is success, as in HTTPFetcher.
	c.OnResponse(func(r *colly.Response) {
		page = &Page{URL: rawURL, StatusCode: r.StatusCode, Body: string(r.Body)}
	})
	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		zap.L().Debug("colly: fetch failed",
			zap.String("url", rawURL),
			zap.Int("status", status),
			zap.Error(err),
		)
	})

	err := c.Visit(rawURL)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	if page == nil {
		return nil, &TransportError{URL: rawURL, Err: errNoResponse}
	}
	if page.StatusCode < 200 || page.StatusCode > 299 {
		return nil, &TransportError{
			URL:        rawURL,
			StatusCode: page.StatusCode,
			Err:        eris.Errorf("unexpected status %d", page.StatusCode),
		}
	}
	return page, nil
}

package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/watchtracker/internal/model"
	"github.com/sells-group/watchtracker/internal/resilience"
)

// Page is the raw content of one fetched page.
type Page struct {
	URL        string
	StatusCode int
	Body       string
}

// Fetcher retrieves a single page. Implementations never retry.
type Fetcher interface {
	// Fetch issues one GET for rawURL. A non-2xx status or a network failure
	// is reported as *TransportError; an invalid URL as *model.InputError.
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

var errNoResponse = eris.New("fetcher: no response received")

// TransportError reports a failed fetch: non-success status or network failure.
type TransportError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same request could succeed.
func (e *TransportError) Transient() bool {
	if e.StatusCode != 0 {
		return resilience.IsTransientHTTPStatus(e.StatusCode)
	}
	return resilience.IsTransient(e.Err)
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, model.NewInputError("url", "is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, model.NewInputError("url", err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, model.NewInputError("url", "must start with http:// or https://")
	}
	if u.Host == "" {
		return nil, model.NewInputError("url", "must be absolute")
	}
	return u, nil
}

// WithPage returns baseURL with the page query parameter set to n.
func WithPage(baseURL, param string, n int) (string, error) {
	u, err := ValidateURL(baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(param, fmt.Sprint(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

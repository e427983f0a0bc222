package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/watchtracker/internal/config"
	"github.com/sells-group/watchtracker/internal/db"
	"github.com/sells-group/watchtracker/internal/extract"
	"github.com/sells-group/watchtracker/internal/fetcher"
	"github.com/sells-group/watchtracker/internal/notify"
	"github.com/sells-group/watchtracker/internal/resilience"
	"github.com/sells-group/watchtracker/internal/scan"
	"github.com/sells-group/watchtracker/internal/store"
	"github.com/sells-group/watchtracker/internal/tracker"
)

// trackerEnv holds the store and tracker service shared by the
// serve/scan/cycle commands.
type trackerEnv struct {
	Store   store.Store
	Tracker *tracker.Service
}

// Close releases resources held by the environment.
func (te *trackerEnv) Close() {
	if te.Store != nil {
		_ = te.Store.Close()
	}
}

// initTracker validates config for mode, opens and migrates the store, and
// wires fetcher, scan engines and notifiers into a tracker.Service.
// Callers should defer env.Close().
func initTracker(ctx context.Context, c *config.Config, mode string) (*trackerEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	f := initFetcher(c)
	engine := scan.NewEngine(f, scanOptions(c))
	svc := tracker.New(st, engine, engine.Strict(), initNotifier(c), tracker.Options{
		Concurrency: c.Scan.Concurrency,
		Retry:       resilience.PolicyFromConfig(c.Retry),
	})

	return &trackerEnv{Store: st, Tracker: svc}, nil
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "watchtracker.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, db.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

func initFetcher(c *config.Config) fetcher.Fetcher {
	opts := fetcher.HTTPOptions{
		UserAgent:    c.Fetch.UserAgent,
		Timeout:      c.Fetch.Timeout(),
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
		HostRate:     rate.Limit(c.Fetch.HostRate),
	}
	if c.Fetch.Backend == "colly" {
		zap.L().Debug("using colly fetch backend")
		return fetcher.NewCollyFetcher(opts)
	}
	return fetcher.NewHTTPFetcher(opts)
}

func scanOptions(c *config.Config) scan.Options {
	opts := scan.DefaultOptions()
	opts.MaxPages = c.Scan.MaxPages
	if c.Scan.PageParam != "" {
		opts.PageParam = c.Scan.PageParam
	}
	opts.Pacing = c.Scan.Pacing()
	opts.PageRetries = c.Scan.PageRetries
	opts.RetryPolicy = resilience.PolicyFromConfig(c.Retry)
	opts.Extract = extract.Options{
		Tags:   c.Extract.Tags,
		MinLen: c.Extract.MinLen,
		MaxLen: c.Extract.MaxLen,
	}
	return opts
}

// initNotifier fans out to every configured sink. With none configured,
// notifications are dropped.
func initNotifier(c *config.Config) notify.Notifier {
	var sinks notify.Multi
	if c.Notify.Email.Enabled() {
		sinks = append(sinks, notify.NewEmail(c.Notify.Email))
	}
	if c.Notify.Telegram.Enabled() {
		sinks = append(sinks, notify.NewTelegram(c.Notify.Telegram))
	}
	if c.Notify.Webhook.URL != "" {
		sinks = append(sinks, notify.NewWebhook(c.Notify.Webhook.URL))
	}

	if len(sinks) == 0 {
		zap.L().Warn("no notification sinks configured, new items will only be logged")
		return notify.Nop{}
	}
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	zap.L().Info("notification sinks enabled", zap.Strings("sinks", names))
	return sinks
}

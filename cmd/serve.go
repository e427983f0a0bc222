package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/watchtracker/internal/tracker"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the scheduled scan cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initTracker(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		sched, err := startScheduler(ctx, env.Tracker, cfg.Scan.Schedule, cfg.Scan.CycleSite)
		if err != nil {
			return err
		}
		if sched != nil {
			defer func() { <-sched.Stop().Done() }()
		}

		handler := buildRouter(&api{
			tracker:    env.Tracker,
			store:      env.Store,
			cronSecret: cfg.Server.CronSecret,
		}, cfg.Server.CORSOrigins)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// startScheduler runs a scan cycle on the given cron expression. An empty
// expression disables scheduling and returns a nil scheduler.
func startScheduler(ctx context.Context, svc *tracker.Service, schedule, site string) (*cron.Cron, error) {
	if schedule == "" {
		zap.L().Info("scan schedule not set, scheduled cycles disabled")
		return nil, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger), cron.Recover(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		if _, err := svc.RunCycle(ctx, site); err != nil {
			zap.L().Error("scheduled cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, eris.Wrapf(err, "parse scan schedule %q", schedule)
	}

	c.Start()
	zap.L().Info("scan scheduler started", zap.String("schedule", schedule), zap.String("site", site))
	return c, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

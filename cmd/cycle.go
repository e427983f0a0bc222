package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cycleSite string

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Scan every stored watch once",
	Long:  "Runs one scan cycle over the stored watches, optionally limited to one site label. Failed watches are counted, not fatal.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initTracker(ctx, cfg, "cycle")
		if err != nil {
			return err
		}
		defer env.Close()

		site := cycleSite
		if site == "" {
			site = cfg.Scan.CycleSite
		}

		report, err := env.Tracker.RunCycle(ctx, site)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d watches: %d succeeded, %d failed.\n",
			report.Total, report.Succeeded, report.Failed)
		return nil
	},
}

func init() {
	cycleCmd.Flags().StringVar(&cycleSite, "site", "", "only scan watches with this site label (default from config, empty = all)")
	rootCmd.AddCommand(cycleCmd)
}

package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/watchtracker/internal/tracker"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan one listing for a match name",
	Long:  "Runs an ad hoc strict scan of --url for --name. With --watch the stored snapshot is diffed and replaced; without it nothing is persisted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		url, _ := cmd.Flags().GetString("url")
		name, _ := cmd.Flags().GetString("name")
		watchID, _ := cmd.Flags().GetString("watch")

		env, err := initTracker(ctx, cfg, "scan")
		if err != nil {
			return err
		}
		defer env.Close()

		// A stored watch supplies whatever was not given on the command line.
		if watchID != "" && (url == "" || name == "") {
			w, err := env.Store.GetWatch(ctx, watchID)
			if err != nil {
				return eris.Wrap(err, "scan: load watch")
			}
			if url == "" {
				url = w.URL
			}
			if name == "" {
				name = w.Name
			}
		}

		res, err := env.Tracker.Check(ctx, tracker.CheckRequest{URL: url, MatchName: name, WatchID: watchID})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	scanCmd.Flags().String("url", "", "listing URL to scan")
	scanCmd.Flags().String("name", "", "match name")
	scanCmd.Flags().String("watch", "", "stored watch ID to diff against and update")
	rootCmd.AddCommand(scanCmd)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/watchtracker/internal/model"
	"github.com/sells-group/watchtracker/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage tracked watches",
	Long:  "Commands for adding, listing, removing and importing watches.",
}

// -- watch add --

var watchAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a watch",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		name, _ := cmd.Flags().GetString("name")
		url, _ := cmd.Flags().GetString("url")
		site, _ := cmd.Flags().GetString("site")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		w, err := st.CreateWatch(ctx, model.NewWatch(name, url, site))
		if err != nil {
			return eris.Wrap(err, "watch add")
		}
		fmt.Fprintln(cmd.OutOrStdout(), w.ID)
		return nil
	},
}

// -- watch list --

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		site, _ := cmd.Flags().GetString("site")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		watches, err := st.ListWatches(ctx, store.WatchFilter{Site: site, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "watch list")
		}
		if len(watches) == 0 {
			fmt.Fprintln(os.Stderr, "No watches found.")
			return nil
		}

		formatWatchList(cmd.OutOrStdout(), watches)
		return nil
	},
}

// -- watch rm --

var watchRmCmd = &cobra.Command{
	Use:   "rm <watch-id>",
	Short: "Delete a watch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteWatch(ctx, args[0]); err != nil {
			return eris.Wrap(err, "watch rm")
		}
		return nil
	},
}

// -- watch import --

var watchImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create watches from a YAML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "watch import: open file")
		}
		defer f.Close() //nolint:errcheck

		watches, err := parseWatchFile(f)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := importWatches(ctx, st, watches)
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d watches.\n", n, len(watches))
		return err
	},
}

func init() {
	watchAddCmd.Flags().String("name", "", "match name (required)")
	watchAddCmd.Flags().String("url", "", "search URL (required)")
	watchAddCmd.Flags().String("site", "", "site label used to group scheduled scans")
	_ = watchAddCmd.MarkFlagRequired("name")
	_ = watchAddCmd.MarkFlagRequired("url")

	watchListCmd.Flags().String("site", "", "filter by site label")
	watchListCmd.Flags().Int("limit", 0, "max number of watches to display (0 = all)")

	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchRmCmd)
	watchCmd.AddCommand(watchImportCmd)
	rootCmd.AddCommand(watchCmd)
}

// openStore opens and migrates the configured store. Callers close it.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// watchFile is the YAML seed format:
//
//	watches:
//	  - name: Constellation
//	    url: https://shop.example.com/search?q=omega
//	    site: shop
type watchFile struct {
	Watches []struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
		Site string `yaml:"site"`
	} `yaml:"watches"`
}

// parseWatchFile decodes a seed file into new watches. Every entry must
// carry a name and a url.
func parseWatchFile(r io.Reader) ([]model.Watch, error) {
	var wf watchFile
	if err := yaml.NewDecoder(r).Decode(&wf); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "watch import: decode yaml")
	}

	out := make([]model.Watch, 0, len(wf.Watches))
	for i, e := range wf.Watches {
		name, url := strings.TrimSpace(e.Name), strings.TrimSpace(e.URL)
		if name == "" || url == "" {
			return nil, eris.Errorf("watch import: entry %d: name and url are required", i+1)
		}
		out = append(out, model.NewWatch(name, url, strings.TrimSpace(e.Site)))
	}
	return out, nil
}

// importWatches creates each watch, stopping at the first failure.
// It returns how many were created.
func importWatches(ctx context.Context, st store.Store, watches []model.Watch) (int, error) {
	for i, w := range watches {
		if _, err := st.CreateWatch(ctx, w); err != nil {
			return i, eris.Wrapf(err, "watch import: create %q", w.Name)
		}
	}
	return len(watches), nil
}

// formatWatchList writes a tabular list of watches to out.
func formatWatchList(out io.Writer, watches []model.Watch) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSITE\tSTATUS\tRESULTS\tLAST_SCAN")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t------\t-------\t---------")

	for _, wt := range watches {
		lastScan := "never"
		if wt.LastScan != nil {
			lastScan = wt.LastScan.Format(time.DateTime)
		}
		site := wt.Site
		if site == "" {
			site = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			truncateID(wt.ID), truncate(wt.Name, 30), site, wt.Status, len(wt.Results), lastScan)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of an ID.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

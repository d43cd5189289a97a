package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/snap2pass/internal/control"
	"github.com/vietddude/snap2pass/internal/core/worker"
	"github.com/vietddude/snap2pass/internal/infra/storage"
)

var (
	historyFilter storage.OutcomeFilter
	pruneOlder    time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded trial outcomes",
	Long:  "Show recorded trial outcomes. History persists with storage.type postgres or sqlite (optionally redis+).",
	Run:   runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFilter.KeyPrefix, "key", "", "only keys starting with this prefix (a batch id, a photo path)")
	f.StringVar(&historyFilter.RequestID, "request-id", "", "only this request id")
	f.StringVar(&historyFilter.Kind, "kind", "", "only this outcome kind, e.g. client_error")
	f.IntVar(&historyFilter.Limit, "limit", 50, "maximum rows")

	pruneCmd.Flags().DurationVar(&pruneOlder, "older-than", 0, "delete records older than this (default storage.retention)")
	historyCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(historyCmd)
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete outcome history older than the retention period",
	Run:   runPrune,
}

func runPrune(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	retention := pruneOlder
	if retention <= 0 {
		retention = appCfg.Storage.Retention
	}
	if retention <= 0 {
		slog.Error("No retention set; pass --older-than or set storage.retention")
		os.Exit(1)
	}

	app, err := control.OpenStorage(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() { _ = app.Stop(ctx) }()

	n, err := worker.NewPruner(retention, app.History).PruneOnce(ctx)
	if err != nil {
		slog.Error("Failed to prune history", "error", err)
		os.Exit(1)
	}
	fmt.Printf("deleted %d records older than %s\n", n, retention)
}

func runHistory(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	if appCfg.Storage.Type == "memory" || appCfg.Storage.Type == "redis" {
		slog.Warn("Outcome history is not persisted with this storage type", "storage", appCfg.Storage.Type)
	}

	app, err := control.OpenStorage(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() { _ = app.Stop(ctx) }()

	recs, err := app.History.List(ctx, historyFilter)
	if err != nil {
		slog.Error("Failed to query history", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "RECORDED\tKEY\tTRIAL\tOUTCOME\tCODE\tREQUEST ID\tSCORE\tPASSED\tATTEMPTS")
	for _, r := range recs {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprint(*r.Score)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%t\t%d\n",
			r.RecordedAt.Local().Format(time.DateTime), r.Key, r.Trial, r.Kind, r.Code, r.RequestID, score, r.Passed, r.Attempts)
	}
	_ = w.Flush()
}

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vietddude/snap2pass/internal/batch"
	"github.com/vietddude/snap2pass/internal/control"
	"github.com/vietddude/snap2pass/internal/core/domain"
	"github.com/vietddude/snap2pass/internal/trial"
)

var batchOpts struct {
	spec        specFlags
	concurrency int
	trials      bool
	maxTrials   int
	outDir      string
	metricsPort int
	abandon     bool
}

var batchCmd = &cobra.Command{
	Use:   "batch PATH...",
	Short: "Process every JPEG/PNG in the given files and directories",
	Args:  cobra.MinimumNArgs(1),
	Run:   runBatch,
}

func init() {
	f := batchCmd.Flags()
	batchOpts.spec.register(f)
	f.IntVarP(&batchOpts.concurrency, "concurrency", "c", 0, "parallel pipelines, 1 = sequential (default from config)")
	f.BoolVar(&batchOpts.trials, "trials", false, "resubmit each photo until it passes validation")
	f.IntVar(&batchOpts.maxTrials, "max-trials", 0, "maximum trials per photo (default from config)")
	f.StringVar(&batchOpts.outDir, "out-dir", "", "write processed images to this directory")
	f.IntVar(&batchOpts.metricsPort, "metrics-port", 0, "serve /health and /metrics while running")
	f.BoolVar(&batchOpts.abandon, "abandon", false, "on interrupt, abandon in-flight photos instead of letting them finish")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) {
	spec, ok, err := batchOpts.spec.spec()
	if err != nil {
		slog.Error("Invalid document specification", "error", err)
		os.Exit(1)
	}
	if !ok {
		slog.Error("A document specification is required: --document-id, --country/--type or --width/--height")
		os.Exit(1)
	}

	files, err := collectPhotos(args)
	if err != nil {
		slog.Error("Failed to collect photos", "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		slog.Error("No JPEG or PNG files found", "paths", args)
		os.Exit(1)
	}

	cfg := *appCfg
	if batchOpts.concurrency > 0 {
		cfg.Batch.Concurrency = batchOpts.concurrency
	}
	if batchOpts.metricsPort > 0 {
		cfg.Metrics.Port = batchOpts.metricsPort
	}
	if batchOpts.abandon {
		cfg.Batch.AbandonInFlight = true
	}
	maxTrials := batchOpts.maxTrials
	if maxTrials <= 0 {
		maxTrials = cfg.Trials.MaxTrials
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewApp(ctx, &cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() { _ = app.Stop(context.Background()) }()

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start", "error", err)
		os.Exit(1)
	}

	items := make([]domain.BatchItem, len(files))
	for i, f := range files {
		items[i] = domain.BatchItem{Ref: f, Submission: domain.PhotoSubmission{Source: f}}
	}

	res := app.Batch.Run(ctx, items, batch.Options{
		SharedSpec: &spec,
		UseTrials:  batchOpts.trials,
		Trial:      trial.RunOptions{MaxTrials: maxTrials},
	})

	if batchOpts.outDir != "" {
		for _, e := range res.Entries {
			path := outputPath(batchOpts.outDir, e.Index, e.Ref)
			if n, err := saveOutput(e.Result.Outcome, path); err != nil {
				slog.Warn("Failed to save processed image", "ref", e.Ref, "error", err)
			} else if n > 0 {
				slog.Debug("Processed image saved", "ref", e.Ref, "path", path, "size", humanize.IBytes(uint64(n)))
			}
		}
	}

	printBatch(os.Stdout, res)
	if len(res.Failed()) > 0 {
		os.Exit(2)
	}
}

func printBatch(out io.Writer, res domain.BatchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tPHOTO\tOUTCOME\tCODE\tREQUEST ID\tTRIALS\tATTEMPTS\tDETAIL")
	for _, e := range res.Entries {
		o := e.Result.Outcome
		trials := "-"
		if e.Trial != nil {
			trials = fmt.Sprint(e.Trial.Trial)
		}
		detail := o.Message()
		if o.Success != nil {
			detail = strings.Join(o.Success.Errors, "; ")
			if o.Clean() {
				detail = "passed"
			}
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.Index, e.Ref, o.Kind, o.Code(), o.RequestID, trials, e.Result.Attempts, detail)
	}
	_ = w.Flush()

	summary := res.Summary()
	kinds := make([]domain.OutcomeKind, 0, len(summary))
	for k := range summary {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, summary[k]))
	}
	_, _ = fmt.Fprintf(out, "\nbatch %s: %d photos, %s\n", res.ID, len(res.Entries), strings.Join(parts, " "))
}

var photoExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// collectPhotos expands directories (one level) into their image files.
// Explicit files are kept as given so the encoder can reject them.
func collectPhotos(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !photoExts[strings.ToLower(filepath.Ext(e.Name()))] {
				continue
			}
			files = append(files, filepath.Join(p, e.Name()))
		}
	}
	return files, nil
}

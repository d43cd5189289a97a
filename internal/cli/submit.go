package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vietddude/snap2pass/internal/control"
	"github.com/vietddude/snap2pass/internal/core/domain"
	"github.com/vietddude/snap2pass/internal/trial"
)

var submitOpts struct {
	spec      specFlags
	key       string
	maxTrials int
	single    bool
	requestID string
	out       string
}

var submitCmd = &cobra.Command{
	Use:   "submit PHOTO",
	Short: "Process one photo, resubmitting until it passes validation",
	Args:  cobra.ExactArgs(1),
	Run:   runSubmit,
}

func init() {
	f := submitCmd.Flags()
	submitOpts.spec.register(f)
	f.StringVar(&submitOpts.key, "key", "", "trial key; reuse it to resume an unfinished photo (default: photo path)")
	f.IntVar(&submitOpts.maxTrials, "max-trials", 0, "maximum trials for this photo (default from config)")
	f.BoolVar(&submitOpts.single, "single", false, "submit once without the trial loop")
	f.StringVar(&submitOpts.requestID, "request-id", "", "resubmit under an existing request id (implies --single)")
	f.StringVarP(&submitOpts.out, "out", "o", "", "write the processed image to this path")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) {
	spec, ok, err := submitOpts.spec.spec()
	if err != nil {
		slog.Error("Invalid document specification", "error", err)
		os.Exit(1)
	}
	if !ok {
		slog.Error("A document specification is required: --document-id, --country/--type or --width/--height")
		os.Exit(1)
	}
	photo := args[0]
	sub := domain.PhotoSubmission{Source: photo, Spec: spec}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewApp(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() { _ = app.Stop(context.Background()) }()

	var res domain.Result
	if submitOpts.single || submitOpts.requestID != "" {
		res = app.Client.Submit(ctx, sub.WithRequestID(domain.RequestID(submitOpts.requestID)))
	} else {
		key := submitOpts.key
		if key == "" {
			if abs, err := filepath.Abs(photo); err == nil {
				key = abs
			} else {
				key = photo
			}
		}
		maxTrials := submitOpts.maxTrials
		if maxTrials <= 0 {
			maxTrials = appCfg.Trials.MaxTrials
		}

		var state *domain.TrialState
		state, res, err = app.Tracker.Run(ctx, key, sub, trial.RunOptions{MaxTrials: maxTrials})
		if err != nil {
			slog.Error("Trial run failed", "key", key, "error", err)
			if res.Outcome.Kind == 0 {
				os.Exit(1)
			}
		}
		if state != nil && state.Phase != domain.PhaseAccepted && res.Outcome.Kind == domain.OutcomeSuccess {
			slog.Warn("Photo still has validation issues", "trials", state.Trial, "key", key)
		}
	}

	printResult(os.Stdout, res)

	if submitOpts.out != "" {
		n, err := saveOutput(res.Outcome, submitOpts.out)
		switch {
		case err != nil:
			slog.Error("Failed to save processed image", "error", err)
		case n > 0:
			slog.Info("Processed image saved", "path", submitOpts.out, "size", humanize.IBytes(uint64(n)))
		case res.Outcome.Success != nil && res.Outcome.Success.Output.OutputURL != "":
			slog.Info("Processed image is available online", "url", res.Outcome.Success.Output.OutputURL)
		}
	}

	if err := res.Err(); err != nil {
		var oErr *domain.OutcomeError
		if errors.As(err, &oErr) && oErr.Outcome.Kind == domain.OutcomeCreditError {
			os.Exit(3)
		}
		os.Exit(2)
	}
}

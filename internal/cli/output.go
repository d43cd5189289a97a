package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vietddude/snap2pass/internal/core/domain"
)

func printResult(w io.Writer, res domain.Result) {
	o := res.Outcome
	_, _ = fmt.Fprintf(w, "Outcome:     %s\n", o.Kind)
	if o.RequestID != "" {
		_, _ = fmt.Fprintf(w, "Request ID:  %s\n", o.RequestID)
	}
	if o.Trial > 0 {
		_, _ = fmt.Fprintf(w, "Trial:       %d\n", o.Trial)
	}
	_, _ = fmt.Fprintf(w, "Attempts:    %d\n", res.Attempts)

	if s := o.Success; s != nil {
		if s.Score != nil {
			_, _ = fmt.Fprintf(w, "Score:       %d\n", *s.Score)
		}
		_, _ = fmt.Fprintf(w, "Passed:      %t\n", o.Clean())
		if s.Summary != "" {
			_, _ = fmt.Fprintf(w, "Summary:     %s\n", s.Summary)
		}
		if s.Message != "" {
			_, _ = fmt.Fprintf(w, "Message:     %s\n", s.Message)
		}
		for _, e := range s.Errors {
			_, _ = fmt.Fprintf(w, "  error:     %s\n", e)
		}
		for _, warn := range s.Warnings {
			_, _ = fmt.Fprintf(w, "  warning:   %s\n", warn)
		}
		if s.Output.OutputURL != "" {
			_, _ = fmt.Fprintf(w, "Output URL:  %s\n", s.Output.OutputURL)
		}
		return
	}

	if err := res.Err(); err != nil {
		_, _ = fmt.Fprintf(w, "Error:       %v\n", err)
	}
	if o.Kind == domain.OutcomeCreditError {
		_, _ = fmt.Fprintf(w, "Balance:     %g\n", o.CurrentBalance)
	}
}

// saveOutput writes the inline processed image to path and returns its size.
// It writes nothing and returns 0 when the response carried no inline image.
func saveOutput(o domain.Outcome, path string) (int, error) {
	if o.Success == nil || o.Success.Output.ImageBase64 == "" {
		return 0, nil
	}
	data, err := o.Success.Output.DecodeImage()
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write output: %w", err)
	}
	return len(data), nil
}

// outputPath names the processed copy of batch item index inside dir. The
// index prefix keeps sources with the same base name apart.
func outputPath(dir string, index int, source string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	return filepath.Join(dir, fmt.Sprintf("%03d_%s_processed.jpg", index, strings.TrimSuffix(base, ext)))
}

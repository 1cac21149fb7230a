package batch

import (
	"fmt"
	"io"

	"github.com/rm-hull/png-optimizer/internal/config"
	"github.com/rm-hull/png-optimizer/internal/selector"
)

// manifestSkipEvery throttles skip(manifest) lines, which dominate re-runs.
const manifestSkipEvery = 50

// Reporter writes the per-file status lines and the run summary.
type Reporter struct {
	w io.Writer
}

func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

func (r *Reporter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *Reporter) NoFiles() {
	r.printf("No PNG files found in targets.")
}

func (r *Reporter) Header(cfg *config.Config, total int) {
	r.printf("targets=%d write=%t colors=%d min_reduction=%d workers=%d",
		total, cfg.Write, cfg.Colors, cfg.MinReductionBytes, cfg.Workers)
}

func (r *Reporter) SkippedByManifest(idx, total int, key string) {
	if idx%manifestSkipEvery == 0 || idx == total {
		r.printf("[%d/%d] skip(manifest): %s", idx, total, key)
	}
}

func (r *Reporter) Outcome(idx, total int, key string, out selector.Outcome) {
	switch {
	case out.Kind == selector.Replace:
		r.printf("[%d/%d] replace: %s %d -> %d (%dB, %s)", idx, total, key,
			out.OriginalSize, out.ChosenSize, out.OriginalSize-out.ChosenSize, out.StrategyName)
	case out.Kind == selector.Error:
		r.printf("[%d/%d] error: %s (%s)", idx, total, key, out.Reason)
	default:
		r.printf("[%d/%d] skip: %s (%s)", idx, total, key, out.Reason)
	}
}

func (r *Reporter) Summary(cfg *config.Config, stats *RunStats) {
	r.printf("---")
	r.printf("replaced=%d skipped=%d errors=%d", stats.Replaced, stats.Skipped, stats.Errored)
	r.printf("before=%d after=%d saved=%d (%.2f%%)", stats.BytesBefore, stats.BytesAfter, stats.Saved(), stats.SavedPercent())
	r.printf("mode=%s", cfg.Mode())
}

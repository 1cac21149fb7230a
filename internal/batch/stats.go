package batch

import "github.com/rm-hull/png-optimizer/internal/selector"

// State is where a file ended up in a run.
type State string

const (
	SkippedByManifest State = "skipped-by-manifest"
	Replaced          State = "replaced"
	WouldReplace      State = "would-replace" // replace outcome in a dry run
	SkippedByPolicy   State = "skipped-by-policy"
	Errored           State = "errored"
)

type FileResult struct {
	Path    string
	Key     string
	State   State
	Outcome selector.Outcome
}

// RunStats tracks aggregate counters and byte totals across a batch run.
// A file that was not actually reduced counts with its original size on
// both sides.
type RunStats struct {
	Total             int
	Replaced          int
	Skipped           int
	SkippedByManifest int
	Errored           int
	BytesBefore       int64
	BytesAfter        int64

	Files []FileResult
}

func (s *RunStats) Saved() int64 {
	return s.BytesBefore - s.BytesAfter
}

func (s *RunStats) SavedPercent() float64 {
	if s.BytesBefore == 0 {
		return 0
	}
	return float64(s.Saved()) / float64(s.BytesBefore) * 100.0
}

// ExitCode is 0 for a clean run and 2 when any file errored.
func (s *RunStats) ExitCode() int {
	if s.Errored > 0 {
		return 2
	}
	return 0
}

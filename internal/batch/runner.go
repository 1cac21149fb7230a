// Package batch drives an optimisation run: it discovers targets, consults
// the manifest, evaluates stale files on a bounded worker pool, commits
// replacements, and aggregates statistics.
package batch

import (
	"context"
	"io"
	"log"
	"os"
	"sync"

	"github.com/agilira/go-timecache"
	"github.com/rm-hull/png-optimizer/internal/atomicfile"
	"github.com/rm-hull/png-optimizer/internal/config"
	"github.com/rm-hull/png-optimizer/internal/manifest"
	"github.com/rm-hull/png-optimizer/internal/png"
	"github.com/rm-hull/png-optimizer/internal/selector"
)

type job struct {
	idx  int
	path string
	key  string
}

type result struct {
	job
	outcome selector.Outcome
	stat    os.FileInfo // before evaluation
	after   os.FileInfo // after a committed replace
}

// Processor owns the manifest for the duration of a run. Workers only read
// files, select candidates and write their own target; manifest updates and
// statistics happen on the goroutine that calls Run.
type Processor struct {
	cfg       config.Config
	store     *manifest.Store
	selector  *selector.Selector
	reporter  *Reporter
	baseDir   string
	signature string
	decoder   selector.Decoder
	writeFile func(path string, data []byte) error

	jobs    chan job
	results chan result
}

type Option func(*Processor)

func WithDecoder(d selector.Decoder) Option {
	return func(p *Processor) { p.decoder = d }
}

func WithWriteFile(fn func(path string, data []byte) error) Option {
	return func(p *Processor) { p.writeFile = fn }
}

// WithBaseDir sets the directory manifest keys are made relative to.
func WithBaseDir(dir string) Option {
	return func(p *Processor) { p.baseDir = dir }
}

// PNGDecoder adapts the png package to the selector.
func PNGDecoder() selector.Decoder {
	return selector.DecoderFunc(func(data []byte) (selector.Image, error) {
		img, err := png.Decode(data)
		if err != nil {
			return nil, err
		}
		return img, nil
	})
}

func NewProcessor(cfg config.Config, out io.Writer, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Processor{
		cfg:       cfg,
		store:     manifest.NewStore(cfg.Manifest, !cfg.Write),
		reporter:  NewReporter(out),
		signature: manifest.ComputeSignature(cfg.Policy()),
		decoder:   PNGDecoder(),
		writeFile: atomicfile.WriteFile,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		p.baseDir = wd
	}
	p.selector = selector.New(p.decoder, cfg.Policy())
	return p, nil
}

// Run processes every target once. Per-file failures are counted, never
// returned; the error is reserved for discovery and manifest persistence.
func (p *Processor) Run(ctx context.Context) (*RunStats, error) {
	startTime := timecache.CachedTime()
	stats := &RunStats{}

	files, err := Discover(p.cfg.Targets)
	if err != nil {
		return stats, err
	}
	if len(files) == 0 {
		p.reporter.NoFiles()
		return stats, nil
	}
	stats.Total = len(files)

	m := p.store.Load()
	m.Refresh(p.signature)
	p.reporter.Header(&p.cfg, len(files))

	pending := p.plan(ctx, m, files, stats)

	p.jobs = make(chan job)
	p.results = make(chan result)
	p.StartWorkers(len(pending))
	p.DispatchJobs(ctx, pending)
	for res := range p.results {
		p.collect(m, res, stats)
	}

	if p.cfg.Write {
		if err := p.store.Persist(m); err != nil {
			return stats, err
		}
	}

	p.reporter.Summary(&p.cfg, stats)
	log.Printf("Processed %d files in %s (errors=%d)",
		stats.Total, timecache.CachedTime().Sub(startTime), stats.Errored)
	return stats, nil
}

// plan stats every file and settles the ones the manifest vouches for; the
// rest are returned for evaluation.
func (p *Processor) plan(ctx context.Context, m *manifest.Manifest, files []string, stats *RunStats) []job {
	pending := make([]job, 0, len(files))
	for i, path := range files {
		if ctx.Err() != nil {
			log.Printf("Interrupted, %d files not checked", len(files)-i)
			break
		}

		j := job{idx: i + 1, path: path, key: manifest.Key(p.baseDir, path)}
		fi, err := os.Stat(path)
		if err != nil {
			p.collect(m, result{job: j, outcome: selector.Failed(0, err)}, stats)
			continue
		}

		if m.IsSkippable(j.key, fi.Size(), fi.ModTime().UnixNano(), p.signature, p.cfg.Force) {
			stats.Skipped++
			stats.SkippedByManifest++
			stats.BytesBefore += fi.Size()
			stats.BytesAfter += fi.Size()
			stats.Files = append(stats.Files, FileResult{Path: path, Key: j.key, State: SkippedByManifest})
			p.reporter.SkippedByManifest(j.idx, len(files), j.key)
			continue
		}
		pending = append(pending, j)
	}
	return pending
}

func (p *Processor) StartWorkers(jobCount int) {
	poolSize := min(p.cfg.Workers, jobCount)
	var wg sync.WaitGroup
	for range poolSize {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker()
		}()
	}
	go func() {
		wg.Wait()
		close(p.results)
	}()
}

// DispatchJobs feeds the pool until the jobs run out or ctx is cancelled.
func (p *Processor) DispatchJobs(ctx context.Context, pending []job) {
	go func() {
		defer close(p.jobs)
		for _, j := range pending {
			select {
			case <-ctx.Done():
				return
			case p.jobs <- j:
			}
		}
	}()
}

func (p *Processor) worker() {
	for j := range p.jobs {
		p.results <- p.processFile(j)
	}
}

func (p *Processor) processFile(j job) result {
	res := result{job: j}

	fi, err := os.Stat(j.path)
	if err != nil {
		res.outcome = selector.Failed(0, err)
		return res
	}
	res.stat = fi

	data, err := os.ReadFile(j.path)
	if err != nil {
		res.outcome = selector.Failed(fi.Size(), err)
		return res
	}

	res.outcome = p.selector.Select(data)
	if res.outcome.Kind != selector.Replace || !p.cfg.Write {
		res.outcome.Data = nil
		return res
	}

	if err := p.writeFile(j.path, res.outcome.Data); err != nil {
		res.outcome = selector.Failed(res.outcome.OriginalSize, err)
		return res
	}
	res.outcome.Data = nil

	after, err := os.Stat(j.path)
	if err != nil {
		res.outcome = selector.Failed(res.outcome.OriginalSize, err)
		return res
	}
	res.after = after
	return res
}

// collect folds one evaluated file into the manifest and statistics.
func (p *Processor) collect(m *manifest.Manifest, res result, stats *RunStats) {
	out := res.outcome
	fr := FileResult{Path: res.path, Key: res.key, Outcome: out}

	switch {
	case out.Kind == selector.Error:
		fr.State = Errored
		stats.Errored++
		stats.BytesBefore += out.OriginalSize
		stats.BytesAfter += out.OriginalSize

	case out.Kind == selector.Replace:
		stats.Replaced++
		stats.BytesBefore += out.OriginalSize
		if p.cfg.Write {
			fr.State = Replaced
			stats.BytesAfter += res.after.Size()
			m.RecordSuccess(res.key, res.after.Size(), res.after.ModTime().UnixNano(), p.signature)
		} else {
			fr.State = WouldReplace
			stats.BytesAfter += out.ChosenSize
		}

	default:
		fr.State = SkippedByPolicy
		stats.Skipped++
		stats.BytesBefore += out.OriginalSize
		stats.BytesAfter += out.OriginalSize
		if p.cfg.Write {
			m.RecordSuccess(res.key, res.stat.Size(), res.stat.ModTime().UnixNano(), p.signature)
		}
	}

	stats.Files = append(stats.Files, fr)
	p.reporter.Outcome(res.idx, stats.Total, res.key, out)
}

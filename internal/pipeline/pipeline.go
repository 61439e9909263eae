// Package pipeline links the load, parse and metrics stages that move every
// file of a run into the keyed store.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/imyousuf/codecaliper/internal/dataflow"
	"github.com/imyousuf/codecaliper/internal/metrics"
	"github.com/imyousuf/codecaliper/internal/parser"
	"github.com/imyousuf/codecaliper/internal/parser/csharp"
	"github.com/imyousuf/codecaliper/internal/parser/java"
	"github.com/imyousuf/codecaliper/internal/store"
)

// Stage names, as reported in failures.
const (
	StageLoad    = "load"
	StageParse   = "parse"
	StageMetrics = "metrics"
)

// Config holds configuration for a Pipeline.
type Config struct {
	Root            string // file ids are paths relative to Root
	Parallelism     int    // concurrent transforms per stage, 0 means DefaultParallelism
	ContinueOnError bool   // record failed files and keep going instead of aborting the run
	Verbose         bool
	Logger          func(format string, args ...any) // optional logger, defaults to fmt.Fprintf(os.Stderr, ...)
}

// DefaultParallelism returns twice the number of available CPUs.
func DefaultParallelism() int {
	return 2 * runtime.NumCPU()
}

// DefaultRegistry returns a parser registry with every supported dialect.
func DefaultRegistry() *parser.Registry {
	r := parser.NewRegistry()
	r.Register(csharp.NewParser())
	r.Register(java.NewParser())
	return r
}

// Failure records a file that failed while ContinueOnError was set.
type Failure struct {
	FileID string
	Stage  string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Stage, f.FileID, f.Err)
}

// Summary describes a finished run.
type Summary struct {
	Files    int // items offered to the first stage
	Parsed   int
	Measured int
	Skipped  int // files without a supported dialect
	Failures []Failure
	Elapsed  time.Duration
}

// Pipeline moves files through load, parse and metrics stages. A Pipeline
// may be run any number of times; each run builds fresh stages.
type Pipeline struct {
	store           *store.Store
	registry        *parser.Registry
	collector       *metrics.Collector
	root            string
	parallelism     int
	continueOnError bool
	verbose         bool
	log             func(format string, args ...any)

	mu       sync.Mutex
	failures []Failure
}

// Build creates a pipeline over st. The degree of parallelism is fixed here.
func Build(st *store.Store, registry *parser.Registry, collector *metrics.Collector, cfg Config) *Pipeline {
	logFn := cfg.Logger
	if logFn == nil {
		logFn = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}
	n := cfg.Parallelism
	if n < 1 {
		n = DefaultParallelism()
	}
	root := cfg.Root
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	return &Pipeline{
		store:           st,
		registry:        registry,
		collector:       collector,
		root:            root,
		parallelism:     n,
		continueOnError: cfg.ContinueOnError,
		verbose:         cfg.Verbose,
		log:             logFn,
	}
}

// Parallelism returns the per-stage concurrency bound.
func (p *Pipeline) Parallelism() int { return p.parallelism }

// Store returns the store the pipeline writes into.
func (p *Pipeline) Store() *store.Store { return p.store }

// FileID returns the store key of a file path: its slash-separated path
// relative to the pipeline root, or the cleaned path itself if it lies
// outside the root.
func (p *Pipeline) FileID(path string) string {
	if p.root != "" {
		abs := path
		if !filepath.IsAbs(abs) {
			if a, err := filepath.Abs(path); err == nil {
				abs = a
			}
		}
		rel, err := filepath.Rel(p.root, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// Run loads, parses and measures every path produced by paths.
func (p *Pipeline) Run(ctx context.Context, paths dataflow.Source[string]) (*Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.resetFailures()

	load := p.loadStage()
	if err := load.Link(runCtx, paths); err != nil {
		return nil, err
	}
	summary, err := p.measure(runCtx, cancel, load)
	<-load.Done()
	loadStats := load.Stats()
	summary.Files = int(loadStats.Received)
	summary.Skipped += int(loadStats.Filtered)
	return summary, err
}

// RunIDs parses and measures file ids that callers registered in the store
// beforehand. Unregistered ids fault the run with store.ErrKeyNotFound.
func (p *Pipeline) RunIDs(ctx context.Context, ids dataflow.Source[string]) (*Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.resetFailures()
	return p.measure(runCtx, cancel, ids)
}

func (p *Pipeline) measure(ctx context.Context, cancel context.CancelFunc, ids dataflow.Source[string]) (*Summary, error) {
	start := time.Now()

	parse := p.parseStage()
	collect := p.metricsStage()
	if err := parse.Link(ctx, ids); err != nil {
		return &Summary{}, err
	}
	if err := collect.Link(ctx, parse); err != nil {
		return &Summary{}, err
	}

	if p.verbose {
		p.log("Running pipeline with parallelism %d", p.parallelism)
	}

	err := dataflow.Drain[store.ScopeRecord](collect, nil)
	if err != nil {
		cancel()
	}
	<-parse.Done()

	parseStats := parse.Stats()
	summary := &Summary{
		Files:    int(parseStats.Received),
		Parsed:   int(parseStats.Emitted),
		Skipped:  int(parseStats.Filtered),
		Measured: int(collect.Stats().Emitted),
		Failures: p.Failures(),
		Elapsed:  time.Since(start),
	}
	if p.verbose {
		p.log("Pipeline complete: %d parsed, %d measured, %d skipped, %d failed in %s",
			summary.Parsed, summary.Measured, summary.Skipped, len(summary.Failures), summary.Elapsed)
	}
	return summary, err
}

// Failures returns the failures recorded by the last run.
func (p *Pipeline) Failures() []Failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Failure, len(p.failures))
	copy(out, p.failures)
	return out
}

func (p *Pipeline) resetFailures() {
	p.mu.Lock()
	p.failures = nil
	p.mu.Unlock()
}

// onError returns a stage error handler isolating per-file failures when
// ContinueOnError is set.
func (p *Pipeline) onError(stage string, id func(string) string) func(string, error) error {
	if !p.continueOnError {
		return nil
	}
	return func(item string, err error) error {
		f := Failure{FileID: id(item), Stage: stage, Err: err}
		p.mu.Lock()
		p.failures = append(p.failures, f)
		p.mu.Unlock()
		p.log("  %v", f)
		return nil
	}
}

func identity(s string) string { return s }

func (p *Pipeline) loadStage() *dataflow.Stage[string, string] {
	return dataflow.NewStage(StageLoad, dataflow.Options[string]{
		Parallelism:  p.parallelism,
		ErrorHandler: p.onError(StageLoad, p.FileID),
	}, p.load).WithPredicate(p.loadable)
}

// loadable accepts paths of a supported dialect, so other files are neither
// read nor registered.
func (p *Pipeline) loadable(path string) (bool, error) {
	ok := p.registry.Supports(path)
	if !ok && p.verbose {
		p.log("  Skipping %s (unsupported dialect)", p.FileID(path))
	}
	return ok, nil
}

// load reads a file and registers its descriptor. Ids already in the store
// are passed through untouched.
func (p *Pipeline) load(_ context.Context, path string) (string, error) {
	id := p.FileID(path)
	if _, err := p.store.File(id); err == nil {
		return id, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file %s: %w", path, err)
	}
	fd := store.NewFileDescriptor(id, path, content)
	fd.Hash = xxh3.Hash(content)
	fd.Lines = metrics.CountLines(content)
	if d, ok := parser.DialectOf(path); ok {
		fd.Dialect = string(d)
	}
	if _, _, err := p.store.Register(fd); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Pipeline) parseStage() *dataflow.Stage[string, string] {
	return dataflow.NewStage(StageParse, dataflow.Options[string]{
		Parallelism:  p.parallelism,
		ErrorHandler: p.onError(StageParse, identity),
	}, p.parse).WithPredicate(p.admit)
}

// admit accepts a file id whose descriptor has a supported extension.
func (p *Pipeline) admit(id string) (bool, error) {
	fd, err := p.store.File(id)
	if err != nil {
		return false, err
	}
	ok := p.registry.Supports(fd.Path)
	if !ok && p.verbose {
		p.log("  Skipping %s (unsupported dialect)", id)
	}
	return ok, nil
}

func (p *Pipeline) parse(_ context.Context, id string) (string, error) {
	fd, err := p.store.File(id)
	if err != nil {
		return "", err
	}
	if p.verbose {
		p.log("Parsing %s...", id)
	}
	tree, err := p.registry.Parse(fd.Path, fd.Source)
	if err != nil {
		return "", err
	}
	fd.Tree = tree
	if fd.Dialect == "" {
		fd.Dialect = tree.Dialect
	}
	return id, nil
}

func (p *Pipeline) metricsStage() *dataflow.Stage[string, store.ScopeRecord] {
	return dataflow.NewStage(StageMetrics, dataflow.Options[string]{
		Parallelism:  p.parallelism,
		ErrorHandler: p.onError(StageMetrics, identity),
	}, p.collect)
}

func (p *Pipeline) collect(_ context.Context, id string) (store.ScopeRecord, error) {
	rec, err := p.collector.CollectMetrics(id)
	if err != nil {
		return store.ScopeRecord{}, err
	}
	if p.verbose {
		p.log("  -> %s: CC %d, SLOC %d", id, rec.CyclomaticComplexity, rec.SourceLinesOfCode)
	}
	return rec, nil
}

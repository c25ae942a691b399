package processor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/spf13/afero"

	"dupdup/internal/bucket"
	"dupdup/internal/hasher"
	"dupdup/internal/progress"
	"dupdup/internal/report"
)

type engine struct {
	fsys     afero.Fs
	opts     Options
	reporter *progress.Reporter
	errs     ErrorSink
	logger   *slog.Logger
	exclude  excludeSet
	summary  Summary
}

// phaseState is the mutable progress of one pass.
type phaseState struct {
	phase   progress.Phase
	current int
	total   int
	wasted  int64
}

func (s *phaseState) status(path string) progress.Status {
	return progress.Status{
		Phase:   s.phase,
		Current: s.current,
		Total:   s.total,
		Wasted:  s.wasted,
		Path:    path,
	}
}

func newEngine(fsys afero.Fs, opts Options, reporter *progress.Reporter, errs ErrorSink) *engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if reporter == nil {
		reporter = progress.New(0, progress.Discard)
	}
	if errs == nil {
		errs = discardErrors{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &engine{
		fsys:     fsys,
		opts:     opts,
		reporter: reporter,
		errs:     errs,
		logger:   logger,
		exclude:  newExcludeSet(opts.Exclude),
	}
}

// Run finds the files under root that share their full content and returns
// them grouped by digest.
//
// A cheap prefilter hashes the first opts.PartialSize bytes of every file;
// only files whose prefilter digest is shared are read in full. File-level
// failures are sent to errs and never stop the scan. Run only fails when ctx
// is cancelled, in which case no report is returned.
func Run(ctx context.Context, fsys afero.Fs, root string, opts Options, reporter *progress.Reporter, errs ErrorSink) (Summary, report.Report, error) {
	e := newEngine(fsys, opts, reporter, errs)

	total, err := countFiles(ctx, fsys, root, e.exclude)
	if err != nil {
		return e.summary, nil, err
	}
	e.summary.Files = total
	e.logger.Info("scanning", "root", root, "files", total)

	prefilter, err := e.prefilter(ctx, root, total)
	if err != nil {
		return e.summary, nil, err
	}

	confirmed, sizes, err := e.confirm(ctx, prefilter)
	if err != nil {
		return e.summary, nil, err
	}

	rep := report.Report{}
	for digest, paths := range confirmed.Groups() {
		rep[digest.String()] = slices.Clone(paths)
	}
	e.summary.Groups = len(rep)
	e.summary.Duplicates = rep.Files()
	e.summary.Wasted = exactWaste(confirmed, sizes)

	e.reporter.Finish(fmt.Sprintf("Second pass finished, wasted %s in %d duplicated files (%d groups).",
		progress.Bytes(e.summary.Wasted), e.summary.Duplicates, e.summary.Groups))

	return e.summary, rep, nil
}

// prefilter buckets every regular file by the digest of its first bytes.
func (e *engine) prefilter(ctx context.Context, root string, total int) (*bucket.Bucketer[hasher.Digest, string], error) {
	buckets := bucket.New[hasher.Digest, string]()
	state := &phaseState{phase: progress.PhasePrefilter, total: total}

	produce := func(send func(Job) error) error {
		return walkFiles(ctx, e.fsys, root, e.exclude, send)
	}
	collect := func(res Result) {
		if !e.accept(res, state) {
			return
		}
		if buckets.Insert(res.Digest, res.Path) {
			state.wasted += res.Size
		}
	}

	mode := hasher.Partial(e.opts.PartialSize)
	if err := e.pipeline(ctx, mode, e.opts.PartialBuffer, produce, collect); err != nil {
		return nil, err
	}

	e.summary.PartialWasted = state.wasted
	e.summary.Candidates = buckets.Duplicates()
	e.reporter.Finish(fmt.Sprintf("First pass finished, potentially wasted %s in %d duplicated files.",
		progress.Bytes(state.wasted), e.summary.Candidates))
	return buckets, nil
}

// confirm fully hashes the prefilter survivors. Singleton prefilter buckets
// are never read again.
func (e *engine) confirm(ctx context.Context, prefilter *bucket.Bucketer[hasher.Digest, string]) (*bucket.Bucketer[hasher.Digest, string], map[string]int64, error) {
	buckets := bucket.New[hasher.Digest, string]()
	sizes := make(map[string]int64)
	state := &phaseState{phase: progress.PhaseConfirm, total: prefilter.Duplicates()}

	produce := func(send func(Job) error) error {
		for _, paths := range prefilter.Groups() {
			for _, path := range paths {
				if err := send(Job{Path: path}); err != nil {
					return err
				}
			}
		}
		return nil
	}
	collect := func(res Result) {
		if !e.accept(res, state) {
			return
		}
		sizes[res.Path] = res.BytesRead
		if buckets.Insert(res.Digest, res.Path) {
			state.wasted += res.BytesRead
		}
	}

	if err := e.pipeline(ctx, hasher.Full(), e.opts.FullBuffer, produce, collect); err != nil {
		return nil, nil, err
	}
	return buckets, sizes, nil
}

// accept advances progress for res and reports whether it carries a digest.
// Failed results are recorded and dropped.
func (e *engine) accept(res Result, state *phaseState) bool {
	if res.Job.Err != nil {
		// never became a candidate
		e.fail(res.Err)
		return false
	}

	state.current++
	e.reporter.Update(state.status(res.Path))
	if res.Err != nil {
		e.fail(res.Err)
		return false
	}
	return true
}

func (e *engine) fail(err error) {
	e.summary.Errors++
	e.errs.Record(err)
	e.logger.Debug("skipping file", "err", err)
}

// pipeline hashes every job produce sends, using opts.Workers goroutines,
// and hands results to collect one at a time in the order they were sent.
func (e *engine) pipeline(ctx context.Context, mode hasher.Mode, bufSize int, produce func(send func(Job) error) error, collect func(Result)) error {
	jobs := make(chan Job)
	results := make(chan Result)

	var wg sync.WaitGroup
	wg.Add(e.opts.Workers)
	for i := 0; i < e.opts.Workers; i++ {
		go func() {
			defer wg.Done()
			worker(ctx, e.fsys, hasher.New(bufSize), mode, jobs, results)
		}()
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		pending := make(map[int]Result)
		next := 0
		for res := range results {
			pending[res.Seq] = res
			for {
				r, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				collect(r)
			}
		}
	}()

	producerErr := make(chan error, 1)
	go func() {
		defer close(jobs)
		seq := 0
		send := func(job Job) error {
			job.Seq = seq
			select {
			case jobs <- job:
				seq++
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		producerErr <- produce(send)
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	if err := <-producerErr; err != nil {
		return err
	}
	return ctx.Err()
}

func worker(ctx context.Context, fsys afero.Fs, h *hasher.Hasher, mode hasher.Mode, jobs <-chan Job, results chan<- Result) {
	for job := range jobs {
		if ctx.Err() != nil {
			return
		}

		res := Result{Job: job}
		if job.Err != nil {
			res.Err = job.Err
			results <- res
			continue
		}

		digest, n, err := h.SumFile(fsys, job.Path, mode)
		res.Digest = digest
		res.BytesRead = n
		if err != nil {
			res.Err = err
		}
		results <- res
	}
}

func exactWaste(confirmed *bucket.Bucketer[hasher.Digest, string], sizes map[string]int64) int64 {
	var wasted int64
	for _, paths := range confirmed.Groups() {
		wasted += int64(len(paths)-1) * sizes[paths[0]]
	}
	return wasted
}

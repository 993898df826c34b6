// Package batch runs the translation pipeline over a whole content tree:
// discovery, per-file translation (sequential or through a bounded worker
// pool), checksum bookkeeping and the end-of-run summary.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/javierasping/Markdown-translation/config"
	"github.com/javierasping/Markdown-translation/corpus"
	"github.com/javierasping/Markdown-translation/lockfile"
	"github.com/javierasping/Markdown-translation/pipeline"
	"github.com/javierasping/Markdown-translation/translate"
)

// FileTranslator translates one discovered file. *pipeline.Translator
// implements it.
type FileTranslator interface {
	TranslateFile(ctx context.Context, e corpus.Entry) (*pipeline.Outcome, error)
}

// FileError is a file that could not be translated.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e FileError) Unwrap() error { return e.Err }

// Summary reports the result of a run.
type Summary struct {
	// Discovered is the number of files that needed a translation.
	Discovered int
	// Translated is the number of files written.
	Translated int
	// Failed lists files left untranslated, sorted by path.
	Failed []FileError
	// Warnings counts fields and lines kept in the source language.
	Warnings int
	// Requests counts translation requests issued by the pipeline.
	Requests int
	// Pending lists the discovered entries when DryRun is set.
	Pending []corpus.Entry
}

// OK reports whether every discovered file was translated.
func (s *Summary) OK() bool { return len(s.Failed) == 0 }

// Options controls a run.
type Options struct {
	// Concurrency is the number of files translated at once; <= 1 is sequential.
	Concurrency int
	// Delay is the pause between starting two files.
	Delay time.Duration
	// DryRun only discovers.
	DryRun bool
	// Lock, when set, records the checksum of every translated source and is
	// saved at the end of the run.
	Lock *lockfile.LockFile
	// OnProgress is called after each file.
	OnProgress func(done, total int, e corpus.Entry, out *pipeline.Outcome)
	// OnLog emits log messages during the run.
	OnLog func(format string, args ...any)
	// OnError emits error messages during the run.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// ---------------------------------------------------------------------------
// Setup
// ---------------------------------------------------------------------------

// NewTranslator builds the translation client and the document pipeline
// described by cfg.
func NewTranslator(ctx context.Context, cfg config.Config, verbose bool, onLog func(string, ...any)) (*pipeline.Translator, *translate.Client, error) {
	backend, err := translate.NewBackend(ctx, cfg.Provider(), cfg.SourceLang(), cfg.TargetLang())
	if err != nil {
		return nil, nil, err
	}
	client, err := translate.NewClient(backend, cfg.ClientOptions(verbose))
	if err != nil {
		return nil, nil, err
	}
	tr := pipeline.NewTranslator(client, pipeline.Options{
		Source:         cfg.SourceLang(),
		Target:         cfg.TargetLang(),
		ProtectedLines: cfg.ProtectedLines(),
		Keep:           cfg.KeepMetadata(),
		RepairHeadings: cfg.RepairHeadings(),
		OnLog:          onLog,
	})
	return tr, client, nil
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run translates every file under cfg.Root() that has no translation yet.
// A failing file never stops the run; cancellation of ctx stops starting new
// files and is returned once in-flight files finish.
func Run(ctx context.Context, cfg config.Config, tr FileTranslator, opts Options) (*Summary, error) {
	entries, err := corpus.Discover(cfg.Root(), cfg.TargetLang(), corpus.Options{Exclude: cfg.Exclude()})
	if err != nil {
		return nil, err
	}

	sum := &Summary{Discovered: len(entries)}
	if opts.DryRun {
		sum.Pending = entries
		return sum, nil
	}
	if len(entries) == 0 {
		if opts.Lock != nil {
			saveLock(cfg, opts, 0)
		}
		return sum, nil
	}

	var (
		mu   sync.Mutex
		done int
	)
	process := func(ctx context.Context, e corpus.Entry) {
		out, err := tr.TranslateFile(ctx, e)

		mu.Lock()
		defer mu.Unlock()
		done++

		if out != nil {
			sum.Requests += out.Requests
			sum.Warnings += len(out.Warnings)
		}
		if err != nil {
			sum.Failed = append(sum.Failed, FileError{Path: e.Rel, Err: err})
			opts.logError("%s: %v", e.Rel, err)
		} else {
			sum.Translated++
			if opts.Lock != nil {
				if data, readErr := os.ReadFile(e.Path); readErr == nil {
					opts.Lock.Record(cfg.TargetLang(), e.Rel, data)
				}
			}
		}
		if opts.OnProgress != nil {
			opts.OnProgress(done, len(entries), e, out)
		}
	}

	if opts.Concurrency <= 1 {
		runSequential(ctx, entries, opts.Delay, process)
	} else {
		opts.log("translating %d files with %d workers", len(entries), opts.Concurrency)
		runParallel(ctx, entries, opts.Concurrency, opts.Delay, process)
	}

	sort.Slice(sum.Failed, func(i, j int) bool { return sum.Failed[i].Path < sum.Failed[j].Path })

	if opts.Lock != nil {
		saveLock(cfg, opts, sum.Translated)
	}

	return sum, ctx.Err()
}

// saveLock drops lock entries of deleted sources and writes the lock file
// when this run changed it.
func saveLock(cfg config.Config, opts Options, translated int) {
	removed := 0
	if sources, err := corpus.Sources(cfg.Root(), cfg.TargetLang(), cfg.Exclude()); err == nil {
		rels := make([]string, len(sources))
		for i, e := range sources {
			rels[i] = e.Rel
		}
		removed = opts.Lock.Clean(cfg.TargetLang(), rels)
		if removed > 0 {
			opts.log("dropped %d lock entries for deleted sources", removed)
		}
	} else {
		opts.logError("listing sources: %v", err)
	}

	if translated == 0 && removed == 0 {
		return
	}
	if err := opts.Lock.Save(); err != nil {
		opts.logError("saving %s: %v", opts.Lock.Path(), err)
	}
}

// runSequential processes tasks in order on the calling goroutine.
func runSequential[T any](ctx context.Context, tasks []T, delay time.Duration, fn func(context.Context, T)) {
	for i, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		fn(ctx, task)
	}
}

// runParallel runs fn for each task with at most maxConcurrent in flight,
// waiting delay between launches. It returns once every launched task is done.
func runParallel[T any](ctx context.Context, tasks []T, maxConcurrent int, delay time.Duration, fn func(context.Context, T)) {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

launch:
	for i, task := range tasks {
		if ctx.Err() != nil {
			break
		}

		// Delay between launching tasks (skip first)
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				break launch
			case <-time.After(delay):
			}
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break launch
		}
		wg.Add(1)

		go func(t T) {
			defer func() {
				<-sem
				wg.Done()
			}()

			fn(ctx, t)
		}(task)
	}

	wg.Wait()
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Report is the translation state of a corpus.
type Report struct {
	Sources    int
	Translated int
	Pending    []string
	// Stale lists translated sources that changed after their translation
	// was recorded.
	Stale []string
	// Untracked lists translated sources with no lock entry, such as
	// translations written by hand or before the lock file existed.
	Untracked []string
}

// Inspect reports the state of cfg.Root() without translating anything.
func Inspect(cfg config.Config, lock *lockfile.LockFile) (*Report, error) {
	sources, err := corpus.Sources(cfg.Root(), cfg.TargetLang(), cfg.Exclude())
	if err != nil {
		return nil, err
	}

	rep := &Report{Sources: len(sources)}
	for _, e := range sources {
		if !e.Exists() {
			rep.Pending = append(rep.Pending, e.Rel)
			continue
		}
		rep.Translated++
		if lock == nil {
			continue
		}
		data, err := os.ReadFile(e.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", e.Path, err)
		}
		switch {
		case !lock.Known(cfg.TargetLang(), e.Rel):
			rep.Untracked = append(rep.Untracked, e.Rel)
		case lock.IsStale(cfg.TargetLang(), e.Rel, data):
			rep.Stale = append(rep.Stale, e.Rel)
		}
	}
	return rep, nil
}

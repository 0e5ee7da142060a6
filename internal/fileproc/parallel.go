// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/panbanda/pycc/pkg/analyzer"
	"github.com/panbanda/pycc/pkg/parser"
	"github.com/sourcegraph/conc/pool"
)

// DefaultWorkers is the pool size used when Options.Workers is not positive.
const DefaultWorkers = 4

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// FileFunc processes one file with a parser owned by the calling worker.
type FileFunc[T any] func(ctx context.Context, psr *parser.Parser, path string) (T, error)

// Options configures Collect.
type Options struct {
	// Workers bounds the number of files processed at once. <= 0 means DefaultWorkers.
	Workers int
	// FailFast cancels the remaining work on the first error and discards all results.
	FailFast bool
	// ParserOptions are applied to every worker's parser.
	ParserOptions []parser.Option
}

type result[T any] struct {
	path  string
	value T
	err   error
}

// Collect processes files on a bounded pool and fans the results into a map keyed by path.
//
// Every task sends its outcome on a single channel; the calling goroutine is the only
// consumer and drains it until the pool has finished and the channel is closed. When two
// entries share a path the later one wins.
//
// With FailFast the first error is returned (wrapped in ProcessingError) and no results
// are kept. Otherwise failed files are returned in ProcessingErrors and the error return is
// only set when ctx is cancelled. Progress is reported to the analyzer.Tracker in ctx.
func Collect[T any](ctx context.Context, files []string, opts Options, fn FileFunc[T]) (map[string]T, *ProcessingErrors, error) {
	out := make(map[string]T, len(files))
	if len(files) == 0 {
		return out, nil, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	tracker := analyzer.TrackerFromContext(ctx)
	results := make(chan result[T], workers)

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	if opts.FailFast {
		p = p.WithCancelOnError().WithFirstError()
	}

	var waitErr error
	go func() {
		defer close(results)
		for _, path := range files {
			p.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}

				psr := parser.New(opts.ParserOptions...)
				defer psr.Close()

				value, err := fn(ctx, psr, path)
				if err != nil {
					if tracker != nil {
						tracker.Fail(path)
					}
					if opts.FailFast {
						return ProcessingError{Path: path, Err: err}
					}
					results <- result[T]{path: path, err: err}
					return nil
				}

				if tracker != nil {
					tracker.Tick(path)
				}
				results <- result[T]{path: path, value: value}
				return nil
			})
		}
		waitErr = p.Wait()
	}()

	errs := &ProcessingErrors{}
	for r := range results {
		if r.err != nil {
			errs.Add(r.path, r.err)
			continue
		}
		out[r.path] = r.value
	}

	if waitErr != nil {
		return nil, nil, waitErr
	}
	if !errs.HasErrors() {
		return out, nil, nil
	}
	return out, errs, nil
}

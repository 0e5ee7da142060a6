package analyzer

import (
	"context"
	"sync/atomic"
)

// ProgressFunc is called after each file finishes, successfully or not.
// done counts finished files, total is the discovered file count.
type ProgressFunc func(done, total int, path string)

// Tracker counts finished files for progress reporting.
// It is safe for concurrent use from multiple goroutines.
type Tracker struct {
	total    atomic.Int64
	done     atomic.Int64
	failed   atomic.Int64
	callback ProgressFunc
}

// NewTracker creates a tracker that invokes callback on every finished file.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// Add grows the expected total by n.
func (t *Tracker) Add(n int) {
	t.total.Add(int64(n))
}

// SetTotal replaces the expected total.
func (t *Tracker) SetTotal(n int) {
	t.total.Store(int64(n))
}

// Tick marks path as finished.
func (t *Tracker) Tick(path string) {
	done := int(t.done.Add(1))
	if t.callback != nil {
		t.callback(done, int(t.total.Load()), path)
	}
}

// Fail marks path as finished with an error.
func (t *Tracker) Fail(path string) {
	t.failed.Add(1)
	t.Tick(path)
}

// Done returns the number of finished files.
func (t *Tracker) Done() int {
	return int(t.done.Load())
}

// Failed returns the number of files that finished with an error.
func (t *Tracker) Failed() int {
	return int(t.failed.Load())
}

// Total returns the expected total.
func (t *Tracker) Total() int {
	return int(t.total.Load())
}

type trackerKey struct{}

// WithTracker returns a context that carries t to the file processing layer.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext returns the tracker stored in ctx, or nil.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}

// Package progress draws a terminal progress bar for file analysis.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/panbanda/pycc/pkg/analyzer"
	"github.com/schollz/progressbar/v3"
)

// Bar wraps a progress bar for file processing.
type Bar struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	w       io.Writer
	label   string
	max     int
	tracker *analyzer.Tracker
}

// NewBar creates a progress bar with the given label. The total is learned
// from the first progress callback; until then a spinner is shown.
// A nil writer means stderr.
func NewBar(w io.Writer, label string) *Bar {
	if w == nil {
		w = os.Stderr
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Bar{bar: bar, w: w, label: label, max: -1}
}

// Callback returns an analyzer.ProgressFunc that advances the bar. Safe for
// concurrent use.
func (b *Bar) Callback() analyzer.ProgressFunc {
	return func(done, total int, path string) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if total > 0 && total != b.max {
			b.max = total
			b.bar.ChangeMax(total)
		}
		b.bar.Add(1)
	}
}

// Tracker returns the analyzer.Tracker wired to the bar, creating it on
// first use.
func (b *Bar) Tracker() *analyzer.Tracker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tracker == nil {
		b.tracker = analyzer.NewTracker(b.Callback())
	}
	return b.tracker
}

// FinishSuccess clears the bar. When files failed a one-line count is left
// in its place.
func (b *Bar) FinishSuccess() {
	b.bar.Finish()
	b.bar.Clear()

	b.mu.Lock()
	t := b.tracker
	b.mu.Unlock()
	if t != nil && t.Failed() > 0 {
		fmt.Fprintf(b.w, "  %s: %d files, %d failed\n", b.label, t.Done(), t.Failed())
	}
}

// FinishError clears the bar and prints an error message.
func (b *Bar) FinishError(err error) {
	b.bar.Finish()
	b.bar.Clear()
	fmt.Fprintf(b.w, "  %s error: %v\n", b.label, err)
}

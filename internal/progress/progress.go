// Package progress draws terminal progress bars for long per-file stages.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for file processing. A nil Tracker ignores every call.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	out   io.Writer
}

// NewTracker creates a progress bar on stderr with the given label and total count.
func NewTracker(label string, total int) *Tracker {
	return NewTrackerTo(os.Stderr, label, total)
}

// NewTrackerTo is NewTracker writing to out.
func NewTrackerTo(out io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
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
	return &Tracker{bar: bar, label: label, out: out}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	if t == nil {
		return
	}
	_ = t.bar.Add(1)
}

// FinishSuccess clears the bar completely.
func (t *Tracker) FinishSuccess() {
	if t == nil {
		return
	}
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	if t == nil {
		return
	}
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}

package unbox

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// repaintInterval is how often the indicator is redrawn independently of
// extraction activity, so spinners keep moving during long entries.
const repaintInterval = 200 * time.Millisecond

// progressIndicator wraps the terminal progress bar used during extraction.
// With a known total it renders a determinate byte bar with ETA, otherwise a
// spinner. The current file name is shown as the bar description. A nil
// writer disables rendering entirely, which is the library default.
type progressIndicator struct {
	bar  *progressbar.ProgressBar
	done chan struct{}
	once sync.Once
}

func newProgressIndicator(total int64, known bool, out io.Writer) *progressIndicator {
	p := &progressIndicator{done: make(chan struct{})}
	if out == nil {
		return p
	}

	opts := []progressbar.Option{
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(""),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(65 * time.Millisecond),
		progressbar.OptionSpinnerType(14),
	}
	if known {
		opts = append(opts,
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetPredictTime(true),
		)
		p.bar = progressbar.NewOptions64(total, opts...)
	} else {
		p.bar = progressbar.NewOptions64(-1, opts...)
	}

	// The repaint tick only re-renders already published state; it never
	// touches extraction state.
	go func() {
		ticker := time.NewTicker(repaintInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
				_ = p.bar.RenderBlank()
			}
		}
	}()
	return p
}

// Add advances the byte counter.
func (p *progressIndicator) Add(n int64) {
	if p.bar != nil {
		_ = p.bar.Add64(n)
	}
}

// Describe updates the displayed current-file label.
func (p *progressIndicator) Describe(name string) {
	if p.bar != nil {
		p.bar.Describe(name)
	}
}

// Finish stops the repaint tick and clears the indicator from the terminal.
func (p *progressIndicator) Finish() {
	p.once.Do(func() {
		close(p.done)
		if p.bar != nil {
			_ = p.bar.Finish()
			_ = p.bar.Clear()
		}
	})
}

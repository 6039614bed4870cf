// Package progress renders transfer progress for interactive sessions. It
// consumes the event bus so the engine stays unaware of presentation.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/paneferry/paneferry/internal/events"
	"github.com/paneferry/paneferry/internal/pathid"
)

// Reporter receives batch progress. The CLI implementation draws a bar;
// silent callers use NewNoOp.
type Reporter interface {
	Update(itemPath string, batchSoFar, batchTotal int64)
	Finish()
}

// Bar renders a single byte-level bar for the whole batch, restyling the
// description as items change.
type Bar struct {
	out      io.Writer
	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	lastItem string
}

// NewBar creates a bar writing to stderr.
func NewBar() *Bar {
	return &Bar{out: os.Stderr}
}

func (b *Bar) Update(itemPath string, batchSoFar, batchTotal int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil {
		b.bar = progressbar.NewOptions64(batchTotal,
			progressbar.OptionSetDescription(shortName(itemPath)),
			progressbar.OptionSetWriter(b.out),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(50),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(b.out, "\n")
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	if itemPath != b.lastItem {
		b.lastItem = itemPath
		b.bar.Describe(shortName(itemPath))
	}
	_ = b.bar.Set64(batchSoFar)
}

func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

// NoOp discards all progress.
type NoOp struct{}

func NewNoOp() *NoOp { return &NoOp{} }

func (*NoOp) Update(string, int64, int64) {}
func (*NoOp) Finish()                     {}

// Renderer pumps progress events from the bus into a Reporter. The
// subscription is taken at construction, so creating the renderer before
// submitting the request guarantees no early chunks are missed.
type Renderer struct {
	ch       <-chan events.Event
	reporter Reporter
}

func NewRenderer(bus *events.EventBus, reporter Reporter) *Renderer {
	return &Renderer{ch: bus.Subscribe(events.EventProgress), reporter: reporter}
}

// Run blocks consuming progress for one request ID until done is closed or
// the bus shuts down. Run it on its own goroutine.
func (r *Renderer) Run(requestID string, done <-chan struct{}) {
	defer r.reporter.Finish()

	for {
		select {
		case ev, ok := <-r.ch:
			if !ok {
				return
			}
			p, ok := ev.(*events.ProgressEvent)
			if !ok || p.RequestID != requestID {
				continue
			}
			r.reporter.Update(p.ItemPath, p.BatchSoFar, p.BatchTotal)
		case <-done:
			return
		}
	}
}

func shortName(path string) string {
	if path == "" {
		return "transferring"
	}
	// Posix Base also folds backslashes, so local Windows paths shorten too.
	return pathid.Posix().Base(path)
}

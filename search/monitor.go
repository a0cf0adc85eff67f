package search

import (
	"context"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"golang.org/x/text/message"
)

// Monitor periodically samples every worker's exponent counter and persists
// the watermark, the minimum across workers, which is the highest exponent
// every worker has verifiably passed. The checkpoint file is overwritten each
// tick and never read back; it exists for whoever is watching the run.
type Monitor struct {
	path     string
	interval time.Duration
	workers  []*Worker
	verbose  bool
	printer  *message.Printer
}

func newMonitor(path string, interval time.Duration, workers []*Worker, verbose bool) *Monitor {
	return &Monitor{
		path:     path,
		interval: interval,
		workers:  workers,
		verbose:  verbose,
		printer:  message.NewPrinter(message.MatchLanguage("en")),
	}
}

// run ticks until the context is cancelled or done is closed, then emits one
// final sample so the checkpoint reflects the last completed work.
func (m *Monitor) run(ctx context.Context, done <-chan struct{}) error {
	tick := time.NewTicker(m.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			m.sample()
			return nil
		case <-done:
			m.sample()
			return nil
		case <-tick.C:
			m.sample()
		}
	}
}

// Watermark returns the minimum exponent across all workers. The counter
// reads are unsynchronized snapshots; a value can be stale by at most one
// pass, which only ever under-reports progress.
func (m *Monitor) Watermark() uint64 {
	low := uint64(math.MaxUint64)
	for _, w := range m.workers {
		if e := w.Exponent(); e < low {
			low = e
		}
	}
	return low
}

func (m *Monitor) sample() {
	low := m.Watermark()
	if m.verbose {
		log.Printf("Checked up to 16^%s", m.printer.Sprintf("%d", low))
	}
	if m.path == "" {
		return
	}
	data := strconv.FormatUint(low, 10) + "\n"
	if err := os.WriteFile(m.path, []byte(data), 0666); err != nil {
		// losing a checkpoint is not worth stopping the search over
		log.Printf("progress write failed: %v", err)
	}
}

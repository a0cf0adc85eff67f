// Package search scans successive powers of sixteen for exponents whose
// decimal representation contains no digit that is itself a power of two
// (1, 2, 4 or 8). Only exponents of 2 divisible by four can qualify, since
// 2^(4k+1), 2^(4k+2) and 2^(4k+3) always end in 2, 4 or 8, which is why the
// scan walks powers of 16 rather than powers of 2.
//
// The exponent sequence is partitioned across workers by residue class: with
// T workers, worker i tests exponents congruent to i mod T. After a short
// catch-up, each pass multiplies the worker's value by 16^T in a single sweep
// over its digits, so every exponent is tested exactly once with no
// cross-worker coordination.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"PowerDigits/nibble"
)

// MaxWorkers is the largest supported worker count. 16^15 is the largest
// power of sixteen that a per-digit multiply step can compute without
// overflowing the 64-bit accumulator.
const MaxWorkers = 15

// Options configures a Search.
type Options struct {
	// Workers is the number of concurrent scan workers, in [1, MaxWorkers].
	Workers int
	// Limit is the highest exponent to test; 0 runs unbounded.
	Limit uint64
	// Sink receives qualifying exponents. Required.
	Sink Sink
	// ProgressPath is the checkpoint file the monitor overwrites each tick.
	// Empty disables the file (the watermark is still computed and logged).
	ProgressPath string
	// Interval is the monitor tick; 0 means 10 seconds.
	Interval time.Duration
	// Verbose enables per-tick progress logging.
	Verbose bool
	// Alloc overrides the buffer segment allocator; nil uses the default.
	Alloc nibble.Allocator
}

// Search runs a set of partitioned workers plus one progress monitor.
type Search struct {
	workers []*Worker
	monitor *Monitor
	stop    Flag
}

// New validates the options and builds the worker set.
func New(opt Options) (*Search, error) {
	if opt.Workers < 1 || opt.Workers > MaxWorkers {
		return nil, fmt.Errorf("worker count %d outside [1, %d]", opt.Workers, MaxWorkers)
	}
	if opt.Sink == nil {
		return nil, errors.New("search: no sink configured")
	}
	if opt.Interval <= 0 {
		opt.Interval = 10 * time.Second
	}
	s := &Search{}
	for i := 0; i < opt.Workers; i++ {
		s.workers = append(s.workers, &Worker{
			id:     i,
			total:  opt.Workers,
			stride: uint64(1) << (4 * opt.Workers),
			limit:  opt.Limit,
			sink:   opt.Sink,
			stop:   &s.stop,
			alloc:  opt.Alloc,
		})
	}
	s.monitor = newMonitor(opt.ProgressPath, opt.Interval, s.workers, opt.Verbose)
	return s, nil
}

// Watermark returns the current progress watermark.
func (s *Search) Watermark() uint64 {
	return s.monitor.Watermark()
}

// Run blocks until the search ends: a worker hits an allocation failure, the
// context is cancelled, or (with a limit set) every worker passes the limit.
// Cancellation is a clean stop and returns nil.
func (s *Search) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	scanners, sctx := errgroup.WithContext(gctx)
	done := make(chan struct{})

	for _, w := range s.workers {
		w := w
		scanners.Go(func() error {
			return w.run(sctx)
		})
	}
	g.Go(func() error {
		defer close(done)
		return scanners.Wait()
	})
	g.Go(func() error {
		return s.monitor.run(gctx, done)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

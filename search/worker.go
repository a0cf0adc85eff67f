package search

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"PowerDigits/nibble"
)

// Flag is a process-wide monotonic stop flag. It is set at most once, by the
// first worker that fails to grow its buffer, and is never cleared. Readers
// polling between passes may lag a set by one iteration, which is safe
// because the flag only ever goes from clear to set.
type Flag struct {
	v atomic.Bool
}

// Set raises the flag.
func (f *Flag) Set() { f.v.Store(true) }

// IsSet reports whether the flag has been raised.
func (f *Flag) IsSet() bool { return f.v.Load() }

// Worker owns one residue class of exponents: of T workers, worker i tests
// 16^i, 16^(i+T), 16^(i+2T) and so on. The classes partition the naturals, so
// no coordination is needed between workers beyond the shared sink and stop
// flag. Its exponent counter is written only by the worker itself and read by
// the progress monitor.
type Worker struct {
	id     int
	total  int
	stride uint64 // 16^total, one pass advances the exponent by total
	limit  uint64 // 0 means unbounded
	sink   Sink
	stop   *Flag
	alloc  nibble.Allocator

	exponent atomic.Uint64
}

// Exponent returns the last exponent this worker finished testing. The read
// is a snapshot; the monitor tolerates it being one pass stale.
func (w *Worker) Exponent() uint64 {
	return w.exponent.Load()
}

// run scans the worker's residue class until the stop flag is raised, the
// context is cancelled, or the optional exponent limit is passed. A buffer
// growth failure raises the stop flag for the whole process and is returned.
func (w *Worker) run(ctx context.Context) error {
	buf, err := nibble.NewBufferAlloc(w.alloc)
	if err != nil {
		w.stop.Set()
		return fmt.Errorf("worker %d: %w", w.id, err)
	}

	// Catch up from 16^0 to this worker's first class member one exponent at
	// a time. Exponents passed through on the way belong to other workers'
	// classes, so only arrival at 16^id can produce a record.
	for w.exponent.Load() < uint64(w.id) {
		if w.stop.IsSet() {
			return nil
		}
		if w.limit > 0 && w.exponent.Load() >= w.limit {
			return nil
		}
		pow2, err := buf.ScaleBy(16)
		if err != nil {
			return w.fatal(buf, err)
		}
		n := w.exponent.Add(1)
		if n == uint64(w.id) && !pow2 {
			w.record(n)
		}
	}

	// Steady state: one pass multiplies by 16^total, jumping straight to the
	// next member of the class.
	for !w.stop.IsSet() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if w.limit > 0 && w.exponent.Load()+uint64(w.total) > w.limit {
			return nil
		}
		pow2, err := buf.ScaleBy(w.stride)
		if err != nil {
			return w.fatal(buf, err)
		}
		n := w.exponent.Add(uint64(w.total))
		if !pow2 {
			w.record(n)
		}
	}
	return nil
}

// fatal raises the process-wide stop flag, releases the dead buffer and wraps
// the error with the worker identity. The computation cannot continue with
// this worker wedged, so every other worker stops at its next check.
func (w *Worker) fatal(buf *nibble.Buffer, err error) error {
	w.stop.Set()
	buf.Release()
	return fmt.Errorf("worker %d at 16^%d: %w", w.id, w.exponent.Load(), err)
}

// record appends a qualifying exponent. A failed append loses that one line
// but must not halt the search, so it is logged and swallowed.
func (w *Worker) record(exponent uint64) {
	if err := w.sink.Record(exponent); err != nil {
		log.Printf("worker %d: recording 16^%d failed: %v", w.id, exponent, err)
	}
}

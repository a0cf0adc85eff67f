package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerDigits/nibble"
)

type memorySink struct {
	mu  sync.Mutex
	got []uint64
}

func (s *memorySink) Record(exponent uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, exponent)
	return nil
}

func (s *memorySink) sorted() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.got)
	slices.Sort(out)
	return out
}

// qualifyingUpTo computes the expected result set with an independent bignum:
// exponents k where the decimal digits of 16^k avoid 1, 2, 4 and 8.
func qualifyingUpTo(limit uint64) []uint64 {
	var want []uint64
	v := decimal.NewFromInt(1)
	sixteen := decimal.NewFromInt(16)
	for k := uint64(1); k <= limit; k++ {
		v = v.Mul(sixteen)
		if !strings.ContainsAny(v.String(), "1248") {
			want = append(want, k)
		}
	}
	return want
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{Workers: 0, Sink: &memorySink{}})
	assert.Error(t, err)
	_, err = New(Options{Workers: MaxWorkers + 1, Sink: &memorySink{}})
	assert.Error(t, err)
	_, err = New(Options{Workers: 1})
	assert.Error(t, err)
}

// Every worker count must produce exactly the same result set as a sequential
// scan: the residue classes cover each exponent once, so nothing is skipped
// and nothing is reported twice.
func TestPartitionCoverage(t *testing.T) {
	const limit = 120
	want := qualifyingUpTo(limit)
	require.NotEmpty(t, want) // 16^4 = 65536 qualifies, for one

	for workers := 1; workers <= MaxWorkers; workers++ {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			sink := &memorySink{}
			s, err := New(Options{
				Workers: workers,
				Limit:   limit,
				Sink:    sink,
			})
			require.NoError(t, err)
			require.NoError(t, s.Run(context.Background()))

			got := sink.sorted()
			assert.Equal(t, want, got)
			assert.Len(t, got, len(sink.got), "duplicate records")
		})
	}
}

func TestWatermarkFile(t *testing.T) {
	const (
		workers = 3
		limit   = 300
	)
	progress := filepath.Join(t.TempDir(), "progress.txt")
	s, err := New(Options{
		Workers:      workers,
		Limit:        limit,
		Sink:         &memorySink{},
		ProgressPath: progress,
		Interval:     5 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	// every worker ran to the end of its class, so the watermark lands within
	// one stride of the limit
	low := s.Watermark()
	assert.Greater(t, low, uint64(limit-workers))
	assert.LessOrEqual(t, low, uint64(limit))

	data, err := os.ReadFile(progress)
	require.NoError(t, err)
	line := strings.TrimSuffix(string(data), "\n")
	persisted, err := strconv.ParseUint(line, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, low, persisted, "final checkpoint must match the final watermark")
}

// An allocation failure in one worker is fatal for the whole search: the
// failing worker raises the shared flag and every sibling stops at its next
// pass boundary.
func TestAllocFailureStopsAllWorkers(t *testing.T) {
	if testing.Short() {
		t.Skip("runs a few thousand multiply passes")
	}
	var segments atomic.Int32
	alloc := func() []uint64 {
		// one initial segment per worker, nothing more
		if segments.Add(1) > 2 {
			return nil
		}
		return make([]uint64, nibble.WordsPerSegment)
	}
	s, err := New(Options{
		Workers: 2,
		Sink:    &memorySink{},
		Alloc:   alloc,
	})
	require.NoError(t, err)

	err = s.Run(context.Background())
	require.ErrorIs(t, err, nibble.ErrAllocFailed)
	assert.True(t, s.stop.IsSet())
}

func TestCancellationStopsUnboundedRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, err := New(Options{
		Workers: 2,
		Sink:    &memorySink{},
	})
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	assert.NoError(t, s.Run(ctx))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFlagIsMonotonic(t *testing.T) {
	var f Flag
	assert.False(t, f.IsSet())
	f.Set()
	assert.True(t, f.IsSet())
	f.Set()
	assert.True(t, f.IsSet())
}

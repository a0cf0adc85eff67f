package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"PowerDigits/common"
	"PowerDigits/nibble"
	"PowerDigits/search"
)

/*
Searches powers of 2 for values which, written in base 10, contain no digit
that is itself a power of 2 (1, 2, 4 or 8).

Only exponents divisible by 4 can qualify, since 2^(4n+1), 2^(4n+2) and
2^(4n+3) always end in 2, 4 or 8, so the search walks powers of 16 instead.
The values overflow machine integers almost immediately, so each worker keeps
its power as packed decimal nibbles and multiplies it in place, checking the
digits in the same pass. With T workers, worker i owns the exponents congruent
to i mod T and jumps between them by multiplying by 16^T, so the workers cover
every exponent exactly once without coordinating.

Qualifying exponents are appended to the result file as "16^n" lines. A
monitor goroutine periodically writes the lowest exponent all workers have
passed to the progress file. The search runs until interrupted (or until
-limit, if given); it stops on its own only if memory for more digits cannot
be obtained.
*/

func main() {
	threads := flag.Int("threads", common.DefaultWorkers(), "Number of worker threads, at most 15")
	results := flag.String("results", "results.txt", "File qualifying exponents are appended to")
	progress := flag.String("progress", "progress.txt", "File the progress watermark is written to")
	interval := flag.Duration("interval", 10*time.Second, "Progress checkpoint interval")
	limitString := flag.String("limit", "", "Highest exponent to test. Can use M, G, T, P and E as powers of ten; empty runs forever")
	verbose := flag.Bool("verbose", false, "verbose output")
	selfTestPasses := flag.Int("selftest", 0, "Cross-check this many multiply passes against an independent bignum before starting")
	cpuProfile := flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile := flag.String("memprofile", "", "write memory profile to file")
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		err = pprof.StartCPUProfile(f)
		if err != nil {
			log.Fatal(err)
			return
		}
		defer pprof.StopCPUProfile()
	}
	defer func() {
		if *memProfile != "" {
			f, err := os.Create(*memProfile)
			if err != nil {
				log.Fatal(err)
			}
			runtime.GC()
			err = pprof.WriteHeapProfile(f)
			if err != nil {
				log.Fatal(err)
			}
			_ = f.Close()
		}
	}()

	limit, err := common.DecodeLimit(*limitString, *verbose)
	if err != nil {
		log.Fatal(err)
	}

	if *selfTestPasses > 0 {
		if err := selfTest(*selfTestPasses); err != nil {
			log.Fatal(err)
		}
		if *verbose {
			log.Printf("self test passed for %d passes", *selfTestPasses)
		}
	}

	workers := common.ClampWorkers(*threads)
	if workers != *threads && *verbose {
		log.Printf("clamped -threads %d to %d", *threads, workers)
	}
	fmt.Printf("%d workers\n", workers)

	s, err := search.New(search.Options{
		Workers:      workers,
		Limit:        limit,
		Sink:         search.NewFileSink(*results),
		ProgressPath: *progress,
		Interval:     *interval,
		Verbose:      *verbose,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		log.Fatal(err)
	}
	log.Printf("stopped at watermark 16^%d", s.Watermark())
}

// selfTest runs the first passes of the real scan next to shopspring/decimal
// and verifies both the digit strings and the power-of-two-digit flag agree.
func selfTest(passes int) error {
	buf, err := nibble.NewBuffer()
	if err != nil {
		return err
	}
	want := decimal.NewFromInt(1)
	sixteen := decimal.NewFromInt(16)
	for k := 1; k <= passes; k++ {
		pow2, err := buf.ScaleBy(16)
		if err != nil {
			return err
		}
		want = want.Mul(sixteen)
		if got := buf.String(); got != want.String() {
			return fmt.Errorf("self test: 16^%d = %s, scan computed %s", k, want, got)
		}
		if pow2 != strings.ContainsAny(want.String(), "1248") {
			return fmt.Errorf("self test: 16^%d digit flag %t disagrees with %s", k, pow2, want)
		}
	}
	return nil
}

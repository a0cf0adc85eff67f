// Package common holds option decoding shared by the scan binaries.
package common

import (
	"fmt"
	"log"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// MaxWorkers mirrors search.MaxWorkers: 16^15 is the largest stride a 64-bit
// per-digit multiply can take.
const MaxWorkers = 15

var limitDecoder = regexp.MustCompile(`^([0-9_]+)([MGTPE]*)$`)

// DecodeLimit parses a search limit such as "10M" or "2_500G". The suffixes
// M, G, T, P and E multiply by successive powers of a thousand and may be
// stacked. An empty string or "0" means unbounded.
func DecodeLimit(limitString string, verbose bool) (uint64, error) {
	if limitString == "" {
		return 0, nil
	}
	pieces := limitDecoder.FindStringSubmatch(limitString)
	if pieces == nil {
		return 0, fmt.Errorf(`unrecognized limit %q`, limitString)
	}
	lx, err := strconv.ParseInt(strings.Replace(pieces[1], "_", "", -1), 10, 64)
	if err != nil {
		return 0, err
	}
	limit := uint64(lx)
	for _, s := range pieces[2] {
		switch s {
		case 'M':
			limit *= 1_000_000
		case 'G':
			limit *= 1_000_000_000
		case 'T':
			limit *= 1_000_000_000_000
		case 'P':
			limit *= 1_000_000_000_000_000
		case 'E':
			limit *= 1_000_000_000_000_000_000
		default:
			return 0, fmt.Errorf(`unrecognized limit suffix '%c' in %q, can't happen`, s, limitString)
		}
	}
	if verbose && limit > 0 {
		if limit >= 1_000_000_000_000_000 {
			log.Printf(`Limit: %.1fP`, float64(limit)/1e15)
		} else if limit >= 1_000_000_000_000 {
			log.Printf(`Limit: %.1fT`, float64(limit)/1e12)
		} else if limit >= 1_000_000_000 {
			log.Printf(`Limit: %.1fG`, float64(limit)/1e9)
		} else if limit >= 1_000_000 {
			log.Printf(`Limit: %.1fM`, float64(limit)/1e6)
		} else {
			log.Printf("Limit: %d", limit)
		}
	}
	return limit, nil
}

// DefaultWorkers is half the available hardware execution contexts, the same
// default the reference search uses, and at least one.
func DefaultWorkers() int {
	return ClampWorkers(runtime.NumCPU() / 2)
}

// ClampWorkers bounds a requested worker count to [1, MaxWorkers].
func ClampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

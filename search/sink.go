package search

import (
	"fmt"
	"os"
	"sync"
)

// Sink receives qualifying exponents. Record may be called concurrently from
// every worker; implementations provide their own exclusion.
type Sink interface {
	Record(exponent uint64) error
}

// FileSink appends one line per qualifying exponent, formatted "16^<n>", to a
// text file. The file is opened, appended to and closed under a single lock so
// records from different workers never interleave within a line. The file is
// never rewritten; consumers can tail it as a growing log.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink returns a sink appending to the given path. The file is created
// on first record.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Record appends the exponent to the result file.
func (s *FileSink) Record(exponent uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "16^%d\n", exponent); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

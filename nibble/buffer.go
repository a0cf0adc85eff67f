// Package nibble stores arbitrarily large decimal numbers as packed nibbles,
// one base-10 digit per 4 bits, sixteen digits per uint64 word. Words are
// grouped into fixed-size segments that are allocated incrementally as the
// number grows, so a value can gain digits forever without ever copying the
// digits it already has.
package nibble

import (
	"errors"
	"math/bits"
	"strings"
)

const (
	// SegmentBytes is the size of one segment. It never changes once the
	// process starts; all digit addressing depends on it.
	SegmentBytes = 4096

	wordBytes = 8

	// WordsPerSegment is the number of uint64 words in one segment.
	WordsPerSegment = SegmentBytes / wordBytes

	// DigitsPerWord is the number of packed decimal digits per word.
	DigitsPerWord = 2 * wordBytes

	// DigitsPerSegment is the number of decimal digits one segment holds.
	DigitsPerSegment = WordsPerSegment * DigitsPerWord

	// MaxScale is the largest multiplier ScaleBy accepts. A digit is at most
	// 9 and the running carry stays below the multiplier, so 9*m + m must fit
	// in a uint64. 2^60 covers 16^15, the largest stride the search uses.
	MaxScale = uint64(1) << 60
)

// ErrAllocFailed indicates that a new segment could not be obtained. The
// buffer that reported it must be considered dead.
var ErrAllocFailed = errors.New("nibble: segment allocation failed")

// Allocator obtains one zeroed segment of WordsPerSegment words, returning
// nil if memory cannot be obtained.
type Allocator func() []uint64

func defaultAlloc() []uint64 {
	return make([]uint64, WordsPerSegment)
}

// Buffer is a decimal number of unbounded size. The zero value is not usable;
// construct with NewBuffer. A Buffer is owned by a single goroutine and is
// not safe for concurrent use.
type Buffer struct {
	segments [][]uint64
	count    uint64 // significant digits, always >= 1
	alloc    Allocator
}

// NewBuffer returns a buffer holding the value 1.
func NewBuffer() (*Buffer, error) {
	return NewBufferAlloc(nil)
}

// NewBufferAlloc is NewBuffer with an explicit segment allocator. Passing nil
// uses the default allocator.
func NewBufferAlloc(alloc Allocator) (*Buffer, error) {
	if alloc == nil {
		alloc = defaultAlloc
	}
	b := &Buffer{alloc: alloc}
	if err := b.grow(0); err != nil {
		return nil, err
	}
	b.segments[0][0] = 1
	b.count = 1
	return b, nil
}

// DigitCount returns the number of significant decimal digits.
func (b *Buffer) DigitCount() uint64 {
	return b.count
}

// DigitAt returns the decimal digit at position i, where position 0 is the
// least significant digit. i must be less than DigitCount.
func (b *Buffer) DigitAt(i uint64) uint64 {
	word := b.segments[i/DigitsPerSegment][(i%DigitsPerSegment)/DigitsPerWord]
	return (word >> (4 * (i % DigitsPerWord))) & 0xf
}

// grow ensures the segment with the given index exists. Existing segments and
// digits are untouched if allocation fails.
func (b *Buffer) grow(seg uint64) error {
	for uint64(len(b.segments)) <= seg {
		s := b.alloc()
		if s == nil {
			return ErrAllocFailed
		}
		b.segments = append(b.segments, s)
	}
	return nil
}

// ScaleBy multiplies the buffer in place by m, which must be in [1, MaxScale].
// It reports whether any digit of the resulting value is a power of two
// (1, 2, 4 or 8). Every digit of the new value is inspected in the same pass
// that computes it, including high digits the carry never reached.
//
// On ErrAllocFailed the buffer contents are indeterminate and the buffer must
// not be used again.
func (b *Buffer) ScaleBy(m uint64) (bool, error) {
	if m == 0 || m > MaxScale {
		panic("nibble: scale factor out of range")
	}
	pow2 := false
	carry := uint64(0)
	for pos := uint64(0); pos < b.count; pos += DigitsPerWord {
		if err := b.grow(pos / DigitsPerSegment); err != nil {
			return false, err
		}
		seg := b.segments[pos/DigitsPerSegment]
		wi := (pos % DigitsPerSegment) / DigitsPerWord
		word := seg[wi]
		updated := uint64(0)
		for i := uint64(0); i < DigitsPerWord; i++ {
			raw := (word&0xf)*m + carry
			d := raw % 10
			carry = raw / 10
			word >>= 4
			// exactly one bit set among the low four, true for 1, 2, 4, 8
			if bits.OnesCount64(d) == 1 {
				pow2 = true
			}
			updated |= d << (4 * i)
			if carry > 0 && pos+i >= b.count-1 {
				b.count++
			}
		}
		seg[wi] = updated
	}
	return pow2, nil
}

// String renders the value most significant digit first.
func (b *Buffer) String() string {
	var sb strings.Builder
	sb.Grow(int(b.count))
	for i := b.count; i > 0; i-- {
		sb.WriteByte(byte('0' + b.DigitAt(i-1)))
	}
	return sb.String()
}

// Release drops the segment arena. The buffer is unusable afterwards. Workers
// call this when abandoning a computation so a wedged buffer does not pin
// memory for the life of the process.
func (b *Buffer) Release() {
	b.segments = nil
	b.count = 0
}

// Package hyperloglog provides approximate distinct counting for series,
// label names and label values.
package hyperloglog

import (
	"errors"
	"math"
	"math/bits"

	"github.com/zeebo/xxh3"
)

// Precision bounds. Memory is 2^precision bytes; standard error is about
// 1.04/sqrt(2^precision).
const (
	MinPrecision     uint8 = 4
	MaxPrecision     uint8 = 18
	DefaultPrecision uint8 = 14
)

var (
	// ErrPrecisionMismatch is returned when merging sketches of different precision.
	ErrPrecisionMismatch = errors.New("hyperloglog: precision mismatch")

	// ErrInvalidData is returned when decoding malformed sketch bytes.
	ErrInvalidData = errors.New("hyperloglog: invalid serialized data")
)

// Sketch is a HyperLogLog cardinality estimator. It is not safe for
// concurrent use.
type Sketch struct {
	p         uint8
	registers []uint8
	alpha     float64
}

// New creates a sketch. Out-of-range precision falls back to DefaultPrecision.
func New(precision uint8) *Sketch {
	if precision < MinPrecision || precision > MaxPrecision {
		precision = DefaultPrecision
	}

	m := 1 << precision
	return &Sketch{
		p:         precision,
		registers: make([]uint8, m),
		alpha:     alphaFor(m),
	}
}

func alphaFor(m int) float64 {
	switch m {
	case 16:
		return 0.673
	case 32:
		return 0.697
	case 64:
		return 0.709
	}
	return 0.7213 / (1 + 1.079/float64(m))
}

// Precision returns the configured precision.
func (s *Sketch) Precision() uint8 {
	return s.p
}

// Add records value.
func (s *Sketch) Add(value string) {
	s.AddHash(xxh3.HashString(value))
}

// AddHash records a pre-computed 64-bit hash.
func (s *Sketch) AddHash(hash uint64) {
	idx := hash & (uint64(len(s.registers)) - 1)
	rest := hash >> s.p

	// rank is the position of the first set bit in the remaining 64-p bits.
	rank := uint8(64-s.p) + 1
	if rest != 0 {
		rank = uint8(bits.LeadingZeros64(rest)-int(s.p)) + 1
	}

	if rank > s.registers[idx] {
		s.registers[idx] = rank
	}
}

// Count returns the estimated number of distinct values added.
func (s *Sketch) Count() uint64 {
	var sum float64
	zeros := 0
	for _, r := range s.registers {
		sum += 1 / float64(uint64(1)<<r)
		if r == 0 {
			zeros++
		}
	}

	m := float64(len(s.registers))
	estimate := s.alpha * m * m / sum

	const two32 = float64(1 << 32)
	switch {
	case estimate <= 2.5*m && zeros > 0:
		// Linear counting for small cardinalities.
		estimate = m * math.Log(m/float64(zeros))
	case estimate > two32/30:
		estimate = -two32 * math.Log(1-estimate/two32)
	}

	return uint64(estimate + 0.5)
}

// Merge folds other into s so that s estimates the union of both.
func (s *Sketch) Merge(other *Sketch) error {
	if other == nil {
		return nil
	}
	if s.p != other.p {
		return ErrPrecisionMismatch
	}
	for i, r := range other.registers {
		if r > s.registers[i] {
			s.registers[i] = r
		}
	}
	return nil
}

// Clear resets the sketch to empty.
func (s *Sketch) Clear() {
	clear(s.registers)
}

// Clone returns an independent copy.
func (s *Sketch) Clone() *Sketch {
	out := &Sketch{p: s.p, alpha: s.alpha, registers: make([]uint8, len(s.registers))}
	copy(out.registers, s.registers)
	return out
}

// MemorySize returns the approximate memory footprint in bytes.
func (s *Sketch) MemorySize() int {
	return len(s.registers) + 32
}

// MarshalBinary encodes the sketch as [precision][registers...].
func (s *Sketch) MarshalBinary() ([]byte, error) {
	data := make([]byte, 1+len(s.registers))
	data[0] = s.p
	copy(data[1:], s.registers)
	return data, nil
}

// UnmarshalBinary decodes bytes produced by MarshalBinary.
func (s *Sketch) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return ErrInvalidData
	}
	p := data[0]
	if p < MinPrecision || p > MaxPrecision || len(data) != 1+(1<<p) {
		return ErrInvalidData
	}

	*s = *New(p)
	copy(s.registers, data[1:])
	return nil
}

// FromBytes decodes a sketch.
func FromBytes(data []byte) (*Sketch, error) {
	s := &Sketch{}
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}

// Package quantize turns a model's probability vector into the ascending
// cumulative count table the arithmetic coder needs, guaranteeing every
// symbol a strictly positive range so the coder always makes progress.
package quantize

// Scale is the fixed-point scale applied to each probability before
// flooring. With a vocabulary size up to the low hundred-thousands this
// keeps the total T well under 2^32.
const Scale = 1 << 16

// MinCount is the minimum count assigned to any symbol regardless of its
// probability, so a zero-probability (or underflowing) symbol can still be
// coded.
const MinCount = 1

// Table is an ascending cumulative count table. Table[i] is the inclusive
// running count before symbol i; Table[len(Table)-1] is the total T.
// Symbol i occupies the half-open range [Table[i], Table[i+1]).
type Table []uint32

// Total returns T, the sum of all symbol counts.
func (t Table) Total() uint32 {
	return t[len(t)-1]
}

// Range returns the half-open count range [lo, hi) assigned to symbol s.
func (t Table) Range(s int) (lo, hi uint32) {
	return t[s], t[s+1]
}

// Find returns the unique symbol s such that Table[s] <= target <
// Table[s+1], via binary search over the V symbol slots. target must be in
// [0, Total()).
func (t Table) Find(target uint32) int {
	lo, hi := 0, len(t)-2 // symbol indices span [0, len(t)-2]
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t[mid] <= target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Build quantizes probs (length V, float32 for cross-implementation bit
// exactness) into a Table of length V+1. Quantization proceeds strictly in
// index order 0..V-1 so that identical input vectors produce bit-identical
// tables on any platform.
func Build(probs []float32) Table {
	t := make(Table, len(probs)+1)
	var running uint32
	t[0] = 0
	for i, p := range probs {
		c := uint32(p * float32(Scale))
		if c < MinCount {
			c = MinCount
		}
		running += c
		t[i+1] = running
	}
	return t
}

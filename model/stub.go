package model

import (
	"context"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Stub is a deterministic reference Model, usable as a default backend and
// throughout this module's tests. It derives a probability vector from the
// sequence of context ids seen since the last Reset by folding each ctx
// into a running digest and expanding that digest into V weights with a
// splitmix64 stream. Any distribution it returns is a pure function of
// that sequence, so it can drive the full compress/decompress pipeline
// without needing an external weights file.
type Stub struct {
	vocabSize int
	seed      uint64

	state uint64 // running digest of the context sequence since Reset
}

// NewStub builds a deterministic stub model over a vocabulary of the given
// size. seed lets tests or callers construct distinct stub "variants"
// without changing vocabSize; it feeds ModelHash and the per-step digest.
func NewStub(vocabSize int, seed uint64) *Stub {
	s := &Stub{vocabSize: vocabSize, seed: seed}
	s.Reset()
	return s
}

// Reset returns the running digest to the model's initial state.
func (s *Stub) Reset() {
	s.state = s.seed
}

// ProcessToken folds tok into the running digest and expands the result
// into a normalized probability vector of length VocabSize(). ctx is part
// of the public Model interface name; Go doesn't allow unused parameter
// renames to change behavior, so this takes the context.Context purely to
// satisfy the interface — the stub never blocks or checks cancellation.
func (s *Stub) ProcessToken(_ context.Context, tok uint32) ([]float32, error) {
	s.state = foldToken(s.state, tok)
	return expand(s.state, s.vocabSize), nil
}

// ModelHash identifies this stub's (vocabSize, seed) pair.
func (s *Stub) ModelHash() uint32 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(s.vocabSize))
	binary.LittleEndian.PutUint64(buf[8:16], s.seed)
	full := xxhash.Sum64(buf[:])
	return uint32(full) ^ uint32(full>>32)
}

// VocabSize is V.
func (s *Stub) VocabSize() int {
	return s.vocabSize
}

func foldToken(state uint64, tok uint32) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[0:8], state)
	binary.LittleEndian.PutUint32(buf[8:12], tok)
	return xxhash.Sum64(buf[:])
}

// expand turns a 64-bit digest into a normalized probability vector of
// length n via a splitmix64 stream, one draw per entry, then a sum-to-one
// pass. The weights are intentionally non-uniform (a uniform distribution
// would never exercise the quantizer's rounding behavior in tests).
func expand(digest uint64, n int) []float32 {
	weights := make([]float64, n)
	x := digest
	var total float64
	for i := 0; i < n; i++ {
		x += 0x9E3779B97F4A7C15
		z := x
		z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
		z = (z ^ (z >> 27)) * 0x94D049BB133111EB
		z = z ^ (z >> 31)
		// Map the top bits to [1e-6, 1+1e-6), never exactly 0, so every symbol
		// keeps nonzero mass before the quantizer's MinCount floor.
		w := float64(z>>11)/float64(1<<53) + 1e-6
		weights[i] = w
		total += w
	}
	probs := make([]float32, n)
	for i, w := range weights {
		probs[i] = float32(w / total)
	}
	return probs
}

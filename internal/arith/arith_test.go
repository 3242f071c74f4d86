package arith

import (
	"math"
	"math/rand"
	"testing"

	"github.com/kestrelcc/llmzip/internal/quantize"
)

func uniform(v int) quantize.Table {
	probs := make([]float32, v)
	p := float32(1) / float32(v)
	for i := range probs {
		probs[i] = p
	}
	return quantize.Build(probs)
}

func TestRoundTrip_UniformDistribution(t *testing.T) {
	syms := []int{0, 1, 2, 3, 0, 1}
	table := uniform(4)

	enc := NewEncoder()
	for _, s := range syms {
		enc.Encode(s, table)
	}
	payload := enc.Finalize()

	dec := NewDecoder(payload)
	for i, want := range syms {
		got := dec.Decode(table)
		if got != want {
			t.Fatalf("symbol %d: got %d, want %d", i, got, want)
		}
	}
}

func TestRoundTrip_FixedDistribution_LongSequence(t *testing.T) {
	probs := []float32{0.5, 0.25, 0.125, 0.125}
	table := quantize.Build(probs)

	rng := rand.New(rand.NewSource(1))
	n := 5000
	syms := make([]int, n)
	for i := range syms {
		syms[i] = rng.Intn(len(probs))
	}

	enc := NewEncoder()
	for _, s := range syms {
		enc.Encode(s, table)
	}
	payload := enc.Finalize()

	dec := NewDecoder(payload)
	for i, want := range syms {
		if got := dec.Decode(table); got != want {
			t.Fatalf("symbol %d: got %d, want %d", i, got, want)
		}
	}
}

func TestRoundTrip_VaryingDistributions(t *testing.T) {
	const v = 8
	rng := rand.New(rand.NewSource(2))
	n := 2000

	tables := make([]quantize.Table, n)
	syms := make([]int, n)
	for i := 0; i < n; i++ {
		probs := make([]float32, v)
		var sum float32
		for j := range probs {
			probs[j] = rng.Float32() + 0.01
			sum += probs[j]
		}
		for j := range probs {
			probs[j] /= sum
		}
		tables[i] = quantize.Build(probs)
		syms[i] = rng.Intn(v)
	}

	enc := NewEncoder()
	for i, s := range syms {
		enc.Encode(s, tables[i])
	}
	payload := enc.Finalize()

	dec := NewDecoder(payload)
	for i, want := range syms {
		if got := dec.Decode(tables[i]); got != want {
			t.Fatalf("symbol %d: got %d, want %d", i, got, want)
		}
	}
}

// TestEntropyApproach checks that for a stationary source with entropy H,
// average coded bits per symbol converges to within 10% of H for
// n >= 1000.
func TestEntropyApproach(t *testing.T) {
	probs := []float32{0.5, 0.25, 0.125, 0.0625, 0.0625}
	table := quantize.Build(probs)

	var h float64
	for _, p := range probs {
		pf := float64(p)
		h -= pf * math.Log2(pf)
	}

	rng := rand.New(rand.NewSource(3))
	// Sample symbols from the same distribution so the source is
	// stationary and matches the coding table.
	cum := make([]float64, len(probs))
	var running float64
	for i, p := range probs {
		running += float64(p)
		cum[i] = running
	}
	sample := func() int {
		x := rng.Float64()
		for i, c := range cum {
			if x < c {
				return i
			}
		}
		return len(cum) - 1
	}

	n := 20000
	enc := NewEncoder()
	for i := 0; i < n; i++ {
		enc.Encode(sample(), table)
	}
	payload := enc.Finalize()

	bitsPerSymbol := float64(len(payload)*8) / float64(n)
	if math.Abs(bitsPerSymbol-h) > 0.1*h {
		t.Fatalf("bits/symbol = %.4f, want within 10%% of H = %.4f", bitsPerSymbol, h)
	}
}

func TestDecode_EmptyPayload(t *testing.T) {
	table := uniform(4)
	dec := NewDecoder(nil)
	// Must not panic; reads past end of buffer yield zero bits.
	_ = dec.Decode(table)
}

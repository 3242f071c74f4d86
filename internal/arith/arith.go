// Package arith implements the 32-bit renormalizing integer arithmetic
// coder (the classic Witten-Neal-Cleary "E1/E2/E3" straddle coder) that
// drives llmzip's entropy stage. It codes a single large-alphabet symbol
// per step directly from a cumulative count table, rather than one binary
// decision per context.
package arith

import (
	"github.com/kestrelcc/llmzip/bitio"
	"github.com/kestrelcc/llmzip/internal/quantize"
)

// Interval constants for the 32-bit coder.
const (
	Half         = uint32(1) << 31
	Quarter      = uint32(1) << 30
	ThreeQuarter = 3 * Quarter
	Mask         = ^uint32(0)
)

// Encoder holds the (low, high, pending) triple of a single coding pass.
// It is scoped to one chunk (chunked mode) or the whole stream (plain
// mode) and is not safe for concurrent use.
type Encoder struct {
	low     uint32
	high    uint32
	pending uint32
	out     *bitio.Writer
}

// NewEncoder creates an encoder over a fresh bit stream.
func NewEncoder() *Encoder {
	return &Encoder{
		low:  0,
		high: Mask,
		out:  bitio.NewWriter(),
	}
}

// Encode codes symbol sym whose range is described by table.
func (e *Encoder) Encode(sym int, table quantize.Table) {
	lo, hi := table.Range(sym)
	total := uint64(table.Total())
	rng := uint64(e.high) - uint64(e.low) + 1

	newLow := e.low + uint32(rng*uint64(lo)/total)
	newHigh := e.low + uint32(rng*uint64(hi)/total) - 1

	e.low, e.high = newLow, newHigh
	e.renorm()
}

// renorm performs the E1/E2/E3 renormalization loop, emitting committed
// bits as the interval narrows.
func (e *Encoder) renorm() {
	for {
		switch {
		case e.high < Half:
			e.emit(0)
		case e.low >= Half:
			e.low -= Half
			e.high -= Half
			e.emit(1)
		case e.low >= Quarter && e.high < ThreeQuarter:
			e.low -= Quarter
			e.high -= Quarter
			e.pending++
		default:
			return
		}
		e.low <<= 1
		e.high = (e.high << 1) | 1
	}
}

// emit writes bit followed by any deferred straddle (E3) complements.
func (e *Encoder) emit(bit int) {
	e.out.WriteBit(bit)
	comp := 1 - bit
	for ; e.pending > 0; e.pending-- {
		e.out.WriteBit(comp)
	}
}

// Finalize resolves the remaining ambiguity and flushes the bit stream,
// returning the coded payload. The encoder must not be reused afterward.
func (e *Encoder) Finalize() []byte {
	e.pending++
	if e.low < Quarter {
		e.emit(0)
	} else {
		e.emit(1)
	}
	return e.out.Finalize()
}

// Decoder mirrors Encoder's renormalization but carries a code register
// loaded from the coded payload instead of emitting bits.
type Decoder struct {
	low  uint32
	high uint32
	code uint32
	in   *bitio.Reader
}

// NewDecoder creates a decoder over payload, primed with its first 32
// bits.
func NewDecoder(payload []byte) *Decoder {
	in := bitio.NewReader(payload)
	return &Decoder{
		low:  0,
		high: Mask,
		code: in.ReadBits(32),
		in:   in,
	}
}

// Decode reads the next symbol coded against table.
func (d *Decoder) Decode(table quantize.Table) int {
	total := uint64(table.Total())
	rng := uint64(d.high) - uint64(d.low) + 1

	scaled := uint32(((uint64(d.code)-uint64(d.low)+1)*total - 1) / rng)
	sym := table.Find(scaled)

	lo, hi := table.Range(sym)
	newLow := d.low + uint32(rng*uint64(lo)/total)
	newHigh := d.low + uint32(rng*uint64(hi)/total) - 1

	d.low, d.high = newLow, newHigh
	d.renorm()
	return sym
}

// renorm is the decoder's side of the straddle renormalization: the same
// endpoint shifts as the encoder, but code shifts in fresh bits instead of
// emitting committed ones.
func (d *Decoder) renorm() {
	for {
		switch {
		case d.high < Half:
		case d.low >= Half:
			d.low -= Half
			d.high -= Half
			d.code -= Half
		case d.low >= Quarter && d.high < ThreeQuarter:
			d.low -= Quarter
			d.high -= Quarter
			d.code -= Quarter
		default:
			return
		}
		d.low <<= 1
		d.high = (d.high << 1) | 1
		d.code = (d.code << 1) | uint32(d.in.ReadBit())
	}
}

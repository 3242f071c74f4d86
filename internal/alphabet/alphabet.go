// Package alphabet implements the fixed byte<->codepoint bijection (the
// GPT-2 "byte-level BPE" alphabet) that BPE tokenization operates over.
// Every byte value maps to a printable, non-whitespace Unicode codepoint so
// that arbitrary binary input becomes a string BPE merges can be applied
// to; the table is a process-wide constant built once in init and shared
// by reference, never mutated afterward.
package alphabet

// byteToRune and runeToByte form the process-wide bijection. Built once in
// init and shared by reference across every Tokenizer.
var (
	byteToRune [256]rune
	runeToByte map[rune]byte
)

func init() {
	runeToByte = make(map[rune]byte, 256)

	selfMapped := make(map[int]bool, 256)
	addRange := func(lo, hi int) {
		for b := lo; b <= hi; b++ {
			selfMapped[b] = true
		}
	}
	addRange(0x21, 0x7E)
	addRange(0xA1, 0xAC)
	addRange(0xAE, 0xFF)

	next := rune(0x100)
	for b := 0; b < 256; b++ {
		var r rune
		if selfMapped[b] {
			r = rune(b)
		} else {
			r = next
			next++
		}
		byteToRune[b] = r
		runeToByte[r] = byte(b)
	}
}

// ByteToRune maps a byte value to its alphabet codepoint.
func ByteToRune(b byte) rune {
	return byteToRune[b]
}

// RuneToByte maps an alphabet codepoint back to its byte value. ok is
// false if r is not part of the alphabet.
func RuneToByte(r rune) (b byte, ok bool) {
	b, ok = runeToByte[r]
	return
}

// Encode maps raw bytes to the alphabet string, one codepoint per byte.
func Encode(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = byteToRune[b]
	}
	return string(runes)
}

// Decode maps an alphabet string back to raw bytes. It returns false if s
// contains a rune outside the alphabet.
func Decode(s string) ([]byte, bool) {
	runes := []rune(s)
	out := make([]byte, len(runes))
	for i, r := range runes {
		b, ok := runeToByte[r]
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// Package model defines the narrow facade the arithmetic coder drives:
// reset, process one token of context, report a hash, report vocab size.
// This is the only polymorphic surface in the core (stub vs. a real
// inference backend) and the only point that may suspend — everything
// else in the module is synchronous, single-threaded compute.
package model

import "context"

// Model is the facade the compressor drives. ProcessToken must be a pure,
// deterministic function of the sequence of context ids supplied since the
// last Reset: identical resets plus identical input sequences must yield
// bit-identical probability vectors. Implementations own private mutable
// state and are never shared between concurrent compressions; a caller
// running chunks in parallel must construct one Model per chunk.
type Model interface {
	// Reset returns the model to its initial state.
	Reset()

	// ProcessToken advances the model by one context token and returns a
	// probability vector of length VocabSize(). tok is 0 for the first
	// token after a reset, per the driver's convention of treating the
	// start-of-sequence context as the 0 token id.
	ProcessToken(ctx context.Context, tok uint32) ([]float32, error)

	// ModelHash is a stable identifier for the model variant, embedded in
	// the container header and checked against the decoder's own model on
	// decompression.
	ModelHash() uint32

	// VocabSize is V, the length of every vector ProcessToken returns.
	VocabSize() int
}

// Package llmzip implements a lossless text compressor whose ratio is
// driven by a neural language model: each token's probability distribution
// is fed to an arithmetic coder that spends close to -log2(p) bits per
// token. Tokenization is byte-level BPE over a fixed printable-codepoint
// alphabet; output is framed in a plain or chunked container so large
// inputs can be decompressed in parallel.
//
// The language model itself is a narrow external dependency (see the
// model package); this package only drives it.
//
// Basic usage for a plain (single coder state) round trip:
//
//	c, _ := llmzip.NewCompressor(tokenizerJSON, bpe.DefaultConfig(), newModel, nil)
//	data, stats, err := c.Compress(context.Background(), text)
//	back, err := c.Decompress(context.Background(), data, false)
//
// For large inputs, CompressChunked partitions the token stream so
// Decompress can fan out across goroutines:
//
//	data, stats, err := c.CompressChunked(context.Background(), text)
//	back, err := c.Decompress(context.Background(), data, true)
package llmzip

import (
	"errors"
	"fmt"

	"github.com/kestrelcc/llmzip/bpe"
	"github.com/kestrelcc/llmzip/model"
)

// Sentinel errors for this package's fatal conditions, following the same
// errors.New-plus-%w-wrapping style as the container package.
var (
	// ErrNotInitialized is returned by NewCompressor when no model factory
	// is supplied.
	ErrNotInitialized = errors.New("llmzip: compressor not initialized")
	// ErrModelMismatch is returned by Decompress in strict mode when the
	// container's model hash does not match the runtime model's hash.
	ErrModelMismatch = errors.New("llmzip: model hash mismatch")
)

// Options configures a Compressor's chunking policy and model-mismatch
// strictness.
type Options struct {
	// ChunkSize is the target token count per chunk in chunked mode.
	ChunkSize int
	// OverlapSize is the number of tokens each non-first chunk duplicates
	// from the end of the previous chunk to re-establish model context.
	OverlapSize int
	// StrictModelHash makes Decompress return ErrModelMismatch instead of
	// logging a warning and proceeding when the container's model hash
	// does not match the runtime model's hash.
	StrictModelHash bool
}

// DefaultOptions returns the default chunking policy: 128-token chunks
// with a 16-token overlap, non-strict model-hash checking.
func DefaultOptions() *Options {
	return &Options{
		ChunkSize:   128,
		OverlapSize: 16,
	}
}

// CompressionStats reports size and shape information about a compression
// pass, the concrete-struct analogue of the informative fields the driver
// surface's compress() is expected to return.
type CompressionStats struct {
	OriginalSize   int
	CompressedSize int
	Ratio          float64
	TokenCount     int
	ChunkCount     int
}

// Compressor owns one tokenizer and a factory for fresh model instances.
// The factory, not a single shared model, is what this package holds:
// chunked compression and parallel decompression each need independent
// model state per chunk, and a model must never be shared across
// goroutines.
type Compressor struct {
	tok      *bpe.Tokenizer
	newModel func() model.Model
	opts     *Options
}

// NewCompressor loads a tokenizer from tokenizerJSON and pairs it with
// newModel, a factory invoked once per chunk (and once for the whole
// stream in plain mode) to obtain a private Model instance. opts may be
// nil, in which case DefaultOptions() is used.
func NewCompressor(tokenizerJSON []byte, tokCfg bpe.Config, newModel func() model.Model, opts *Options) (*Compressor, error) {
	if newModel == nil {
		return nil, fmt.Errorf("%w: no model factory supplied", ErrNotInitialized)
	}
	tok, err := bpe.Load(tokenizerJSON, tokCfg)
	if err != nil {
		return nil, fmt.Errorf("llmzip: loading tokenizer: %w", err)
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Compressor{tok: tok, newModel: newModel, opts: opts}, nil
}

package llmzip

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kestrelcc/llmzip/container"
	"github.com/kestrelcc/llmzip/internal/arith"
	"github.com/kestrelcc/llmzip/internal/quantize"
	"github.com/kestrelcc/llmzip/model"
)

// Compress tokenizes text and runs it through a single continuous coder
// state, framing the result in a plain container.
func (c *Compressor) Compress(ctx context.Context, text string) ([]byte, CompressionStats, error) {
	tokens, err := c.tokenize(text)
	if err != nil {
		return nil, CompressionStats{}, err
	}

	m := c.newModel()
	payload, err := encodeTokens(ctx, m, tokens)
	if err != nil {
		return nil, CompressionStats{}, fmt.Errorf("llmzip: compressing: %w", err)
	}

	h := container.Header{
		Version:        container.Version,
		OriginalLength: uint32(len(text)),
		TokenCount:     uint32(len(tokens)),
		ModelHash:      m.ModelHash(),
	}
	data := container.CombineHeaderAndPayload(h, payload)

	return data, c.stats(len(text), len(data), len(tokens), 1), nil
}

// Decompress parses data's container (plain or chunked, detected from the
// magic) and returns the reconstructed text. parallel controls whether a
// chunked container is decoded with one goroutine per chunk; it has no
// effect on a plain container.
func (c *Compressor) Decompress(ctx context.Context, data []byte, parallel bool) (string, error) {
	if container.IsChunked(data) {
		return c.decompressChunked(ctx, data, parallel)
	}

	h, payload, err := container.SplitHeaderAndPayload(data)
	if err != nil {
		return "", fmt.Errorf("llmzip: parsing container: %w", err)
	}

	m := c.newModel()
	if err := c.checkModelHash(h.ModelHash, m.ModelHash()); err != nil {
		return "", err
	}
	if h.TokenCount == 0 {
		return "", nil
	}

	tokens, err := decodeTokens(ctx, m, payload, int(h.TokenCount))
	if err != nil {
		return "", fmt.Errorf("llmzip: decompressing: %w", err)
	}
	return c.detokenize(tokens)
}

func (c *Compressor) tokenize(text string) ([]uint32, error) {
	ids, err := c.tok.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("llmzip: tokenizing: %w", err)
	}
	tokens := make([]uint32, len(ids))
	for i, id := range ids {
		tokens[i] = uint32(id)
	}
	return tokens, nil
}

func (c *Compressor) detokenize(tokens []uint32) (string, error) {
	ids := make([]int, len(tokens))
	for i, t := range tokens {
		ids[i] = int(t)
	}
	text, err := c.tok.Decode(ids)
	if err != nil {
		return "", fmt.Errorf("llmzip: detokenizing: %w", err)
	}
	return text, nil
}

// checkModelHash warns and proceeds on a model-hash mismatch by default,
// or fails with ErrModelMismatch when StrictModelHash is set.
func (c *Compressor) checkModelHash(headerHash, runtimeHash uint32) error {
	if headerHash == runtimeHash {
		return nil
	}
	if c.opts.StrictModelHash {
		return fmt.Errorf("%w: container hash %#08x, runtime hash %#08x", ErrModelMismatch, headerHash, runtimeHash)
	}
	slog.Warn("model hash mismatch, decompression will likely produce garbage",
		"containerModelHash", headerHash, "runtimeModelHash", runtimeHash)
	return nil
}

func (c *Compressor) stats(originalSize, compressedSize, tokenCount, chunkCount int) CompressionStats {
	s := CompressionStats{
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		TokenCount:     tokenCount,
		ChunkCount:     chunkCount,
	}
	if compressedSize > 0 {
		s.Ratio = float64(originalSize) / float64(compressedSize)
	}
	return s
}

// encodeTokens drives a fresh, reset model and a fresh coder across
// tokens in order; the context fed to the model for token i is 0 for the
// first token and the previous token's id otherwise.
func encodeTokens(ctx context.Context, m model.Model, tokens []uint32) ([]byte, error) {
	m.Reset()
	enc := arith.NewEncoder()
	var prev uint32
	for i, tok := range tokens {
		var prevTok uint32
		if i > 0 {
			prevTok = prev
		}
		probs, err := m.ProcessToken(ctx, prevTok)
		if err != nil {
			return nil, fmt.Errorf("model process_token at step %d: %w", i, err)
		}
		table := quantize.Build(probs)
		enc.Encode(int(tok), table)
		prev = tok
	}
	return enc.Finalize(), nil
}

// decodeTokens is encodeTokens' mirror: it drives the same model/coder
// alternation but pulls symbols from the decoder instead of pushing them.
func decodeTokens(ctx context.Context, m model.Model, payload []byte, n int) ([]uint32, error) {
	m.Reset()
	dec := arith.NewDecoder(payload)
	tokens := make([]uint32, n)
	var prev uint32
	for i := 0; i < n; i++ {
		var prevTok uint32
		if i > 0 {
			prevTok = prev
		}
		probs, err := m.ProcessToken(ctx, prevTok)
		if err != nil {
			return nil, fmt.Errorf("model process_token at step %d: %w", i, err)
		}
		table := quantize.Build(probs)
		sym := dec.Decode(table)
		tokens[i] = uint32(sym)
		prev = tokens[i]
	}
	return tokens, nil
}

package llmzip

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelcc/llmzip/container"
)

// CompressChunked tokenizes text and partitions the result into chunks per
// the configured ChunkSize/OverlapSize, compressing each chunk
// independently (fresh model, fresh coder) so DecompressChunked can decode
// them in parallel.
func (c *Compressor) CompressChunked(ctx context.Context, text string) ([]byte, CompressionStats, error) {
	tokens, err := c.tokenize(text)
	if err != nil {
		return nil, CompressionStats{}, err
	}

	chunks := partitionChunks(tokens, c.opts.ChunkSize, c.opts.OverlapSize)

	payloads := make([][]byte, len(chunks))
	tokenCounts := make([]uint16, len(chunks))
	var modelHash uint32

	// Chunks are compressed sequentially: the model is stateful within a
	// chunk but each chunk gets a fresh instance, so there is no benefit
	// to running the encode loop itself in parallel.
	for i, chunkTokens := range chunks {
		m := c.newModel()
		payload, err := encodeTokens(ctx, m, chunkTokens)
		if err != nil {
			return nil, CompressionStats{}, fmt.Errorf("llmzip: compressing chunk %d: %w", i, err)
		}
		payloads[i] = payload
		tokenCounts[i] = uint16(len(chunkTokens))
		modelHash = m.ModelHash()
	}
	if len(chunks) == 0 {
		modelHash = c.newModel().ModelHash()
	}

	offsets := make([]uint32, len(payloads))
	offset := uint32(container.BaseHeaderSize + 6*len(payloads))
	for i, p := range payloads {
		offsets[i] = offset
		offset += uint32(len(p))
	}

	h := container.CreateChunkedHeader(
		uint32(len(text)), uint32(len(tokens)), modelHash,
		uint16(c.opts.ChunkSize), uint16(c.opts.OverlapSize),
		offsets, tokenCounts,
	)
	data := container.CombineChunkedHeaderAndPayloads(h, payloads)

	return data, c.stats(len(text), len(data), len(tokens), len(chunks)), nil
}

// decompressChunked parses a chunked container and reconstructs the
// logical token stream by decoding each chunk and dropping each non-first
// chunk's overlap prefix, which duplicates the tail of the previous
// chunk.
func (c *Compressor) decompressChunked(ctx context.Context, data []byte, parallel bool) (string, error) {
	h, err := container.DecodeChunkedHeader(data)
	if err != nil {
		return "", fmt.Errorf("llmzip: parsing chunked container: %w", err)
	}

	k := h.ChunkCount()
	if k == 0 {
		return "", nil
	}

	probe := c.newModel()
	if err := c.checkModelHash(h.ModelHash, probe.ModelHash()); err != nil {
		return "", err
	}

	decoded := make([][]uint32, k)

	decodeChunk := func(ctx context.Context, i int) error {
		payload := container.ChunkPayload(h, data, i)
		m := c.newModel()
		tokens, err := decodeTokens(ctx, m, payload, int(h.ChunkTokenCounts[i]))
		if err != nil {
			return fmt.Errorf("decoding chunk %d: %w", i, err)
		}
		decoded[i] = tokens
		return nil
	}

	if parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(k, runtime.GOMAXPROCS(0)))
		for i := 0; i < k; i++ {
			i := i
			g.Go(func() error { return decodeChunk(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return "", fmt.Errorf("llmzip: decompressing: %w", err)
		}
	} else {
		for i := 0; i < k; i++ {
			if err := decodeChunk(ctx, i); err != nil {
				return "", fmt.Errorf("llmzip: decompressing: %w", err)
			}
		}
	}

	// Ordering: decoded chunks are merged in ascending chunk index
	// regardless of which order goroutines above actually finished in.
	tokens := make([]uint32, 0, h.TotalTokenCount)
	tokens = append(tokens, decoded[0]...)
	overlap := int(h.OverlapSize)
	for i := 1; i < k; i++ {
		chunkTokens := decoded[i]
		drop := overlap
		if drop > len(chunkTokens) {
			drop = len(chunkTokens)
		}
		tokens = append(tokens, chunkTokens[drop:]...)
	}

	return c.detokenize(tokens)
}

// partitionChunks splits tokens into overlapping chunks: chunk 0 is
// [0, min(chunkSize, N)); chunk i>=1 is
// [max(0, i*chunkSize-overlapSize), min(i*chunkSize+chunkSize, N)), so
// each non-first chunk's first overlapSize tokens duplicate the tail of
// the previous chunk.
func partitionChunks(tokens []uint32, chunkSize, overlapSize int) [][]uint32 {
	n := len(tokens)
	if n == 0 {
		return nil
	}
	numChunks := (n + chunkSize - 1) / chunkSize
	chunks := make([][]uint32, numChunks)
	for i := 0; i < numChunks; i++ {
		p := i * chunkSize
		start := 0
		if i > 0 {
			start = p - overlapSize
			if start < 0 {
				start = 0
			}
		}
		end := p + chunkSize
		if end > n {
			end = n
		}
		chunks[i] = tokens[start:end]
	}
	return chunks
}

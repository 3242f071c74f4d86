package llmzip

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kestrelcc/llmzip/bpe"
	"github.com/kestrelcc/llmzip/internal/alphabet"
	"github.com/kestrelcc/llmzip/model"
)

// testTokenizerJSON mirrors the on-wire tokenizer.json shape (bpe's own
// parsing struct is unexported, so tests in this package build an
// equivalent document by hand).
type testTokenizerJSON struct {
	Model struct {
		Vocab  map[string]int `json:"vocab"`
		Merges []string       `json:"merges"`
	} `json:"model"`
	AddedTokens []testAddedToken `json:"added_tokens,omitempty"`
}

type testAddedToken struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

// byteVocabJSON builds a tokenizer.json with no merges, covering every
// byte-alphabet codepoint as a single-piece vocab entry, so any text
// round-trips regardless of the merge table.
func byteVocabJSON(t *testing.T) []byte {
	t.Helper()
	var doc testTokenizerJSON
	doc.Model.Vocab = make(map[string]int, 256)
	for b := 0; b < 256; b++ {
		doc.Model.Vocab[string(alphabet.ByteToRune(byte(b)))] = b
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal tokenizer config: %v", err)
	}
	return data
}

func newTestCompressor(t *testing.T, opts *Options) *Compressor {
	t.Helper()
	data := byteVocabJSON(t)
	newModel := func() model.Model { return model.NewStub(256, 7) }
	c, err := NewCompressor(data, bpe.DefaultConfig(), newModel, opts)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	return c
}

func TestCompressDecompress_RoundTrip(t *testing.T) {
	c := newTestCompressor(t, nil)
	ctx := context.Background()

	texts := []string{
		"",
		"hello, world!",
		"The quick brown fox jumps over the lazy dog.",
		"日本語とASCIIの混在テキスト",
		"```go\nfunc main() {}\n```",
	}
	for _, text := range texts {
		data, stats, err := c.Compress(ctx, text)
		if err != nil {
			t.Fatalf("Compress(%q): %v", text, err)
		}
		if stats.OriginalSize != len(text) {
			t.Fatalf("OriginalSize = %d, want %d", stats.OriginalSize, len(text))
		}
		if stats.CompressedSize != len(data) {
			t.Fatalf("CompressedSize = %d, want %d", stats.CompressedSize, len(data))
		}

		got, err := c.Decompress(ctx, data, false)
		if err != nil {
			t.Fatalf("Decompress(%q): %v", text, err)
		}
		if got != text {
			t.Fatalf("round trip mismatch: got %q, want %q", got, text)
		}
	}
}

func TestCompress_Deterministic(t *testing.T) {
	c := newTestCompressor(t, nil)
	ctx := context.Background()
	text := "deterministic compression output, please"

	a, _, err := c.Compress(ctx, text)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	b, _, err := c.Compress(ctx, text)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("non-deterministic output lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic output at byte %d", i)
		}
	}
}

func TestChunkedCompressDecompress_RoundTrip(t *testing.T) {
	c := newTestCompressor(t, &Options{ChunkSize: 5, OverlapSize: 2})
	ctx := context.Background()

	text := "the quick brown fox jumps over the lazy dog and then keeps on running"

	data, stats, err := c.CompressChunked(ctx, text)
	if err != nil {
		t.Fatalf("CompressChunked: %v", err)
	}
	if stats.ChunkCount < 2 {
		t.Fatalf("expected multiple chunks for this input, got %d", stats.ChunkCount)
	}

	gotSeq, err := c.Decompress(ctx, data, false)
	if err != nil {
		t.Fatalf("Decompress(sequential): %v", err)
	}
	if gotSeq != text {
		t.Fatalf("sequential chunked round trip mismatch: got %q, want %q", gotSeq, text)
	}

	gotPar, err := c.Decompress(ctx, data, true)
	if err != nil {
		t.Fatalf("Decompress(parallel): %v", err)
	}
	if gotPar != text {
		t.Fatalf("parallel chunked round trip mismatch: got %q, want %q", gotPar, text)
	}
}

func TestChunkedCompress_EmptyInput(t *testing.T) {
	c := newTestCompressor(t, &Options{ChunkSize: 5, OverlapSize: 2})
	ctx := context.Background()

	data, stats, err := c.CompressChunked(ctx, "")
	if err != nil {
		t.Fatalf("CompressChunked: %v", err)
	}
	if stats.TokenCount != 0 || stats.ChunkCount != 0 {
		t.Fatalf("expected zero tokens and chunks for empty input, got %+v", stats)
	}

	got, err := c.Decompress(ctx, data, true)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty string", got)
	}
}

func TestDecompress_EmptyPlainInput(t *testing.T) {
	c := newTestCompressor(t, nil)
	ctx := context.Background()

	data, _, err := c.Compress(ctx, "")
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	got, err := c.Decompress(ctx, data, false)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty string", got)
	}
}

func TestDecompress_ModelMismatch(t *testing.T) {
	data := byteVocabJSON(t)

	lenient, err := NewCompressor(data, bpe.DefaultConfig(), func() model.Model { return model.NewStub(256, 1) }, nil)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}

	ctx := context.Background()
	compressed, _, err := lenient.Compress(ctx, "some text to compress")
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	mismatched, err := NewCompressor(data, bpe.DefaultConfig(), func() model.Model { return model.NewStub(256, 2) }, nil)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	if _, err := mismatched.Decompress(ctx, compressed, false); err != nil {
		t.Fatalf("non-strict mismatch should warn and proceed, got error: %v", err)
	}

	strictMismatched, err := NewCompressor(data, bpe.DefaultConfig(), func() model.Model { return model.NewStub(256, 2) }, &Options{StrictModelHash: true})
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	if _, err := strictMismatched.Decompress(ctx, compressed, false); err == nil {
		t.Fatal("expected ErrModelMismatch in strict mode")
	}
}

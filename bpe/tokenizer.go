// Package bpe implements byte-level BPE tokenization over the fixed byte
// alphabet in internal/alphabet: arbitrary UTF-8 text becomes a sequence of
// vocabulary token ids and back, losslessly, matching the GPT-2 style
// tokenizer.json format (a vocab map, a ranked merge list, and optional
// atomic special tokens).
package bpe

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/kestrelcc/llmzip/internal/alphabet"
)

// Tokenizer holds the loaded vocabulary, merge ranks, and special tokens.
// Its maps are built once at Load and are read-only afterward, so a
// Tokenizer may safely be shared by reference across goroutines.
type Tokenizer struct {
	cfg Config

	vocab     map[string]int // piece -> id
	idToPiece map[int]string // id -> piece (inverse of vocab)
	ranks     map[string]int // "pieceA pieceB" -> merge rank

	specials    []specialToken // sorted longest-content-first for greedy matching
	idToSpecial map[int]string // id -> special token content

	fingerprint uint64
}

type specialToken struct {
	content string
	id      int
}

// Load parses a tokenizer.json document and validates it: every merge's
// two pieces must already be producible (as a base alphabet codepoint or
// an earlier merge's result), and merge ranks must be unique.
func Load(data []byte, cfg Config) (*Tokenizer, error) {
	var raw tokenizerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}

	t := &Tokenizer{
		cfg:         cfg,
		vocab:       raw.Model.Vocab,
		idToPiece:   make(map[int]string, len(raw.Model.Vocab)),
		ranks:       make(map[string]int, len(raw.Model.Merges)),
		idToSpecial: make(map[int]string, len(raw.AddedTokens)),
	}
	for piece, id := range t.vocab {
		t.idToPiece[id] = piece
	}

	known := make(map[string]bool, 256+len(raw.Model.Merges))
	for b := 0; b < 256; b++ {
		known[string(alphabet.ByteToRune(byte(b)))] = true
	}
	for i, m := range raw.Model.Merges {
		parts := strings.SplitN(m, " ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: merge entry %q is not \"a b\"", ErrMalformedConfig, m)
		}
		a, b := parts[0], parts[1]
		if !known[a] || !known[b] {
			return nil, fmt.Errorf("%w: merge %q references a piece that does not yet exist", ErrMalformedConfig, m)
		}
		key := a + " " + b
		if _, dup := t.ranks[key]; dup {
			return nil, fmt.Errorf("%w: duplicate merge %q", ErrMalformedConfig, m)
		}
		t.ranks[key] = i
		known[a+b] = true
	}

	for _, at := range raw.AddedTokens {
		if at.Special {
			t.specials = append(t.specials, specialToken{content: at.Content, id: at.ID})
		}
		t.idToSpecial[at.ID] = at.Content
	}
	sort.Slice(t.specials, func(i, j int) bool {
		return len(t.specials[i].content) > len(t.specials[j].content)
	})

	t.fingerprint = fingerprint(raw.Model.Vocab, raw.Model.Merges)

	return t, nil
}

// fingerprint hashes the vocabulary size and the merge list content (one
// line per merge, in rank order) into a stable digest, so callers can detect a mismatched
// tokenizer independently of the model hash in the container header.
func fingerprint(vocab map[string]int, merges []string) uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "v%d\n", len(vocab))
	for _, m := range merges {
		fmt.Fprintf(h, "%s\n", m)
	}
	return h.Sum64()
}

// Fingerprint returns the tokenizer's content digest.
func (t *Tokenizer) Fingerprint() uint64 {
	return t.fingerprint
}

// VocabSize returns the number of distinct token ids (V).
func (t *Tokenizer) VocabSize() int {
	return len(t.vocab)
}

// Encode turns text into a token id sequence. Special tokens (added_tokens
// entries with special=true) are matched greedily, longest content first,
// and emitted as atomic pieces; everything else goes through byte-alphabet
// mapping and BPE merge search.
func (t *Tokenizer) Encode(text string) ([]int, error) {
	var ids []int
	var pending []byte

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		encoded, err := t.encodeBytes(pending)
		if err != nil {
			return err
		}
		ids = append(ids, encoded...)
		pending = pending[:0]
		return nil
	}

	cursor := 0
	for cursor < len(text) {
		matched := false
		for _, sp := range t.specials {
			if strings.HasPrefix(text[cursor:], sp.content) {
				if err := flush(); err != nil {
					return nil, err
				}
				ids = append(ids, sp.id)
				cursor += len(sp.content)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		pending = append(pending, text[cursor])
		cursor++
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return ids, nil
}

// encodeBytes runs the byte-alphabet mapping and greedy merge search over
// one literal (non-special) span.
func (t *Tokenizer) encodeBytes(data []byte) ([]int, error) {
	if len(data) == 0 {
		return nil, nil
	}
	runes := []rune(alphabet.Encode(data))
	pieces := make([]string, len(runes))
	for i, r := range runes {
		pieces[i] = string(r)
	}

	for {
		a, b, found := t.lowestRankPair(pieces)
		if !found {
			break
		}
		pieces = mergePair(pieces, a, b)
	}

	ids := make([]int, 0, len(pieces))
	for _, p := range pieces {
		if id, ok := t.vocab[p]; ok {
			ids = append(ids, id)
			continue
		}
		if !t.cfg.AllowUnknownPieceFallback {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPiece, p)
		}
		for _, r := range p {
			id, ok := t.vocab[string(r)]
			if !ok {
				return nil, fmt.Errorf("%w: codepoint %U in piece %q", ErrUnknownPiece, r, p)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// lowestRankPair finds the adjacent pair with the globally lowest merge
// rank. Ranks are unique, so at most one pair key achieves the minimum;
// if it occurs at several positions, mergePair's single sweep handles all
// of them.
func (t *Tokenizer) lowestRankPair(pieces []string) (a, b string, found bool) {
	best := -1
	for i := 0; i < len(pieces)-1; i++ {
		key := pieces[i] + " " + pieces[i+1]
		if rank, ok := t.ranks[key]; ok {
			if best == -1 || rank < best {
				best = rank
				a, b = pieces[i], pieces[i+1]
			}
		}
	}
	return a, b, best != -1
}

// mergePair sweeps pieces left to right, merging every non-overlapping
// occurrence of the exact pair (a, b) into a single piece a+b.
func mergePair(pieces []string, a, b string) []string {
	out := make([]string, 0, len(pieces))
	i := 0
	for i < len(pieces) {
		if i < len(pieces)-1 && pieces[i] == a && pieces[i+1] == b {
			out = append(out, a+b)
			i += 2
		} else {
			out = append(out, pieces[i])
			i++
		}
	}
	return out
}

// Decode turns a token id sequence back into text. It is the exact
// inverse of Encode for any sequence Encode itself produced.
func (t *Tokenizer) Decode(ids []int) (string, error) {
	var out strings.Builder
	var pendingAlphabet strings.Builder

	flush := func() error {
		if pendingAlphabet.Len() == 0 {
			return nil
		}
		data, ok := alphabet.Decode(pendingAlphabet.String())
		if !ok {
			return fmt.Errorf("bpe: decoded piece contains a codepoint outside the byte alphabet")
		}
		out.Write(data)
		pendingAlphabet.Reset()
		return nil
	}

	for _, id := range ids {
		if content, ok := t.idToSpecial[id]; ok {
			if err := flush(); err != nil {
				return "", err
			}
			out.WriteString(content)
			continue
		}
		piece, ok := t.idToPiece[id]
		if !ok {
			return "", fmt.Errorf("%w: %d", ErrUnknownToken, id)
		}
		pendingAlphabet.WriteString(piece)
	}
	if err := flush(); err != nil {
		return "", err
	}
	return out.String(), nil
}

// Package container implements llmzip's two on-wire formats: a plain
// single-payload container and a chunked container with a per-chunk
// offset/length table that lets decompression be parallelized. Both share
// a 25-byte base header with a magic number, a version byte, and fixed
// little-endian fields.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic numbers discriminate the two container variants. Parsers MUST
// validate magic and version before any other field.
var (
	MagicPlain   = [4]byte{'L', 'L', 'M', 'C'}
	MagicChunked = [4]byte{'L', 'L', 'M', 'P'}
)

// Version is the only format version this package knows how to read.
const Version = 1

// BaseHeaderSize is the fixed size shared by both header variants before
// the chunked variant's offset/token-count tables.
const BaseHeaderSize = 25

// Field offsets within the base header, in byte order.
const (
	offMagic           = 0  // [4]byte
	offVersion         = 4  // uint8
	offOriginalLength  = 5  // uint32
	offTokenCount      = 9  // uint32 (plain: token count; chunked: reconstructed total)
	offModelHash       = 13 // uint32
	offPlainReserved   = 17 // 8 reserved bytes (plain only)
	offChunkCount      = 17 // uint16 (chunked only)
	offConfChunkSize   = 19 // uint16 (chunked only)
	offConfOverlapSize = 21 // uint16 (chunked only)
	offChunkedReserved = 23 // 2 reserved bytes (chunked only)
)

var (
	// ErrTruncated is returned when a buffer is too short to hold a
	// complete header or chunk table.
	ErrTruncated = errors.New("container: truncated")
	// ErrBadMagic is returned when the leading 4 bytes match neither
	// known container variant.
	ErrBadMagic = errors.New("container: bad magic")
	// ErrUnsupportedVersion is returned for a version newer than this
	// package knows how to read.
	ErrUnsupportedVersion = errors.New("container: unsupported version")
	// ErrBadOffsets is returned when a chunked container's offset table
	// is not strictly increasing or does not start at the header size.
	ErrBadOffsets = errors.New("container: chunk offsets inconsistent")
)

// Header is the plain container's 25-byte fixed header.
type Header struct {
	Version        uint8
	OriginalLength uint32
	TokenCount     uint32
	ModelHash      uint32
}

// IsChunked reports whether data begins with the chunked magic. It does
// not validate the rest of the header.
func IsChunked(data []byte) bool {
	return len(data) >= 4 && data[0] == MagicChunked[0] && data[1] == MagicChunked[1] &&
		data[2] == MagicChunked[2] && data[3] == MagicChunked[3]
}

// EncodeHeader serializes a plain header to its 25-byte wire form.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, BaseHeaderSize)
	copy(buf[offMagic:], MagicPlain[:])
	buf[offVersion] = h.Version
	binary.LittleEndian.PutUint32(buf[offOriginalLength:], h.OriginalLength)
	binary.LittleEndian.PutUint32(buf[offTokenCount:], h.TokenCount)
	binary.LittleEndian.PutUint32(buf[offModelHash:], h.ModelHash)
	// offPlainReserved..BaseHeaderSize is left zero.
	return buf
}

// DecodeHeader parses a plain header, validating magic and version.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < BaseHeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncated, BaseHeaderSize, len(data))
	}
	if !matchMagic(data, MagicPlain) {
		return Header{}, ErrBadMagic
	}
	h := Header{
		Version:        data[offVersion],
		OriginalLength: binary.LittleEndian.Uint32(data[offOriginalLength:]),
		TokenCount:     binary.LittleEndian.Uint32(data[offTokenCount:]),
		ModelHash:      binary.LittleEndian.Uint32(data[offModelHash:]),
	}
	if h.Version > Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}

// CombineHeaderAndPayload frames a plain header with its coded payload.
func CombineHeaderAndPayload(h Header, payload []byte) []byte {
	out := make([]byte, 0, BaseHeaderSize+len(payload))
	out = append(out, EncodeHeader(h)...)
	out = append(out, payload...)
	return out
}

// SplitHeaderAndPayload parses a plain container into its header and the
// payload bytes that follow it.
func SplitHeaderAndPayload(data []byte) (Header, []byte, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return Header{}, nil, err
	}
	return h, data[BaseHeaderSize:], nil
}

func matchMagic(data []byte, magic [4]byte) bool {
	return data[0] == magic[0] && data[1] == magic[1] && data[2] == magic[2] && data[3] == magic[3]
}

package container

import "encoding/binary"

// ChunkedHeader is the chunked container's base header plus its two
// per-chunk tables (offsets and on-wire token counts). TotalTokenCount is
// the reconstructed stream length N, excluding overlap duplicates;
// ChunkTokenCounts[i] is the on-wire L_i, overlap included.
type ChunkedHeader struct {
	Version          uint8
	OriginalLength   uint32
	TotalTokenCount  uint32
	ModelHash        uint32
	ChunkSize        uint16
	OverlapSize      uint16
	ChunkOffsets     []uint32
	ChunkTokenCounts []uint16
}

// ChunkCount returns K.
func (h ChunkedHeader) ChunkCount() int {
	return len(h.ChunkOffsets)
}

// HeaderSize returns the total header size, 25 + 6*K.
func (h ChunkedHeader) HeaderSize() int {
	return BaseHeaderSize + 6*h.ChunkCount()
}

// CreateChunkedHeader builds a ChunkedHeader from its fields, matching the
// constructor shape used by the rest of the on-wire formats in this
// package (plain struct literal, no builder).
func CreateChunkedHeader(originalLength, totalTokenCount uint32, modelHash uint32, chunkSize, overlapSize uint16, offsets []uint32, tokenCounts []uint16) ChunkedHeader {
	return ChunkedHeader{
		Version:          Version,
		OriginalLength:   originalLength,
		TotalTokenCount:  totalTokenCount,
		ModelHash:        modelHash,
		ChunkSize:        chunkSize,
		OverlapSize:      overlapSize,
		ChunkOffsets:     offsets,
		ChunkTokenCounts: tokenCounts,
	}
}

// EncodeChunkedHeader serializes h to its wire form: the 25-byte base
// header, then K 4-byte offsets, then K 2-byte token counts.
func EncodeChunkedHeader(h ChunkedHeader) []byte {
	k := h.ChunkCount()
	buf := make([]byte, h.HeaderSize())

	copy(buf[offMagic:], MagicChunked[:])
	buf[offVersion] = h.Version
	binary.LittleEndian.PutUint32(buf[offOriginalLength:], h.OriginalLength)
	binary.LittleEndian.PutUint32(buf[offTokenCount:], h.TotalTokenCount)
	binary.LittleEndian.PutUint32(buf[offModelHash:], h.ModelHash)
	binary.LittleEndian.PutUint16(buf[offChunkCount:], uint16(k))
	binary.LittleEndian.PutUint16(buf[offConfChunkSize:], h.ChunkSize)
	binary.LittleEndian.PutUint16(buf[offConfOverlapSize:], h.OverlapSize)
	// offChunkedReserved..BaseHeaderSize left zero.

	offOffsets := BaseHeaderSize
	offCounts := BaseHeaderSize + 4*k
	for i := 0; i < k; i++ {
		binary.LittleEndian.PutUint32(buf[offOffsets+4*i:], h.ChunkOffsets[i])
		binary.LittleEndian.PutUint16(buf[offCounts+2*i:], h.ChunkTokenCounts[i])
	}
	return buf
}

// DecodeChunkedHeader parses a chunked header, validating magic, version,
// and that the offset table is present and strictly increasing.
func DecodeChunkedHeader(data []byte) (ChunkedHeader, error) {
	if len(data) < BaseHeaderSize {
		return ChunkedHeader{}, ErrTruncated
	}
	if !matchMagic(data, MagicChunked) {
		return ChunkedHeader{}, ErrBadMagic
	}
	version := data[offVersion]
	if version > Version {
		return ChunkedHeader{}, ErrUnsupportedVersion
	}

	k := int(binary.LittleEndian.Uint16(data[offChunkCount:]))
	h := ChunkedHeader{
		Version:         version,
		OriginalLength:  binary.LittleEndian.Uint32(data[offOriginalLength:]),
		TotalTokenCount: binary.LittleEndian.Uint32(data[offTokenCount:]),
		ModelHash:       binary.LittleEndian.Uint32(data[offModelHash:]),
		ChunkSize:       binary.LittleEndian.Uint16(data[offConfChunkSize:]),
		OverlapSize:     binary.LittleEndian.Uint16(data[offConfOverlapSize:]),
	}

	tableSize := BaseHeaderSize + 6*k
	if len(data) < tableSize {
		return ChunkedHeader{}, ErrTruncated
	}

	offOffsets := BaseHeaderSize
	offCounts := BaseHeaderSize + 4*k
	h.ChunkOffsets = make([]uint32, k)
	h.ChunkTokenCounts = make([]uint16, k)
	for i := 0; i < k; i++ {
		h.ChunkOffsets[i] = binary.LittleEndian.Uint32(data[offOffsets+4*i:])
		h.ChunkTokenCounts[i] = binary.LittleEndian.Uint16(data[offCounts+2*i:])
	}

	if err := validateOffsets(h, len(data)); err != nil {
		return ChunkedHeader{}, err
	}
	return h, nil
}

func validateOffsets(h ChunkedHeader, containerLen int) error {
	k := h.ChunkCount()
	if k == 0 {
		return nil
	}
	if int(h.ChunkOffsets[0]) != h.HeaderSize() {
		return ErrBadOffsets
	}
	for i := 1; i < k; i++ {
		if h.ChunkOffsets[i] <= h.ChunkOffsets[i-1] {
			return ErrBadOffsets
		}
	}
	if int(h.ChunkOffsets[k-1]) >= containerLen {
		return ErrBadOffsets
	}
	return nil
}

// ChunkPayload returns the payload slice for chunk i, computed from the
// offset table: offsets[i+1]-offsets[i] for i < K-1, else the remainder
// of the container.
func ChunkPayload(h ChunkedHeader, data []byte, i int) []byte {
	start := h.ChunkOffsets[i]
	var end uint32
	if i == h.ChunkCount()-1 {
		end = uint32(len(data))
	} else {
		end = h.ChunkOffsets[i+1]
	}
	return data[start:end]
}

// CombineChunkedHeaderAndPayloads frames a chunked header with its
// concatenated per-chunk payloads, in chunk order.
func CombineChunkedHeaderAndPayloads(h ChunkedHeader, payloads [][]byte) []byte {
	total := h.HeaderSize()
	for _, p := range payloads {
		total += len(p)
	}
	out := make([]byte, 0, total)
	out = append(out, EncodeChunkedHeader(h)...)
	for _, p := range payloads {
		out = append(out, p...)
	}
	return out
}

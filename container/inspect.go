package container

// Summary is a read-only peek at a container's header fields, without
// touching payload bytes.
type Summary struct {
	Chunked        bool
	Version        uint8
	OriginalLength uint32
	TokenCount     uint32
	ModelHash      uint32
	ChunkCount     int
	ChunkSize      uint16
	OverlapSize    uint16
}

// Inspect parses just enough of data to describe the container without
// decoding its payload.
func Inspect(data []byte) (*Summary, error) {
	if IsChunked(data) {
		h, err := DecodeChunkedHeader(data)
		if err != nil {
			return nil, err
		}
		return &Summary{
			Chunked:        true,
			Version:        h.Version,
			OriginalLength: h.OriginalLength,
			TokenCount:     h.TotalTokenCount,
			ModelHash:      h.ModelHash,
			ChunkCount:     h.ChunkCount(),
			ChunkSize:      h.ChunkSize,
			OverlapSize:    h.OverlapSize,
		}, nil
	}
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Version:        h.Version,
		OriginalLength: h.OriginalLength,
		TokenCount:     h.TokenCount,
		ModelHash:      h.ModelHash,
	}, nil
}

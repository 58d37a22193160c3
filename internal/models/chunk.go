package models

// Chunk is an immutable, content-addressed document body. Hash is the
// lowercase hex BLAKE3-256 digest of the exact bytes of Data, so two
// chunks with identical data always share one row.
type Chunk struct {
	Hash string
	Data string
	// IsNormal marks whether the content passed normalization.
	IsNormal bool
}

// ChunkMetadata is a derived, recomputable cache keyed 1:1 on a chunk.
// It is valid only while XMLHash matches the owning chunk's hash; a
// mismatch is the caller's signal to recompute. Never authoritative.
type ChunkMetadata struct {
	ChunkHash string
	XMLHash   string
	// Fields holds the extracted indexable fields as JSON.
	Fields []byte
}

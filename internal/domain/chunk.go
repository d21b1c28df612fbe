package domain

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is a retrievable unit of guidance text with a precomputed embedding.
// Chunks are produced by the document-ingestion pipeline; the engine only
// searches them.
type Chunk struct {
	ID                uuid.UUID `json:"id"`
	DocumentVersionID uuid.UUID `json:"document_version_id"`
	Text              string    `json:"text"`
	Embedding         []float32 `json:"-"`
	VisaCode          string    `json:"visa_code,omitempty"`
	Jurisdiction      string    `json:"jurisdiction,omitempty"`
	DocumentCreatedAt time.Time `json:"document_created_at"`
	CreatedAt         time.Time `json:"created_at"`
}

type ChunkWithScore struct {
	Chunk
	Score float32 `json:"score"`
}

// SearchFilters restrict similarity search by chunk metadata. Empty fields
// match everything.
type SearchFilters struct {
	VisaCode     string
	Jurisdiction string
}

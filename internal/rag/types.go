package rag

import (
	"context"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/llm"
)

// Candidate is a retrieval result scoped to a single query's lifetime.
// Candidates are never persisted.
type Candidate struct {
	ChunkID     string
	TenantID    string
	SourceID    string
	SourceType  domain.SourceType
	SourceTitle string
	Text        string
	Score       float64
}

// Query is created per inbound user message and discarded after the
// answer is generated
type Query struct {
	TenantID         string
	RawText          string
	ExpandedVariants []string
}

// SearchFilter restricts a search to the given source types. An empty
// filter matches all source types.
type SearchFilter struct {
	SourceTypes []domain.SourceType
}

// DeleteSelector identifies index entries to remove
type DeleteSelector struct {
	SourceID    string
	SourceTypes []domain.SourceType
}

// VectorIndex stores embedded chunks and supports filtered
// nearest-neighbor search. Every operation is scoped to one tenant.
type VectorIndex interface {
	Upsert(ctx context.Context, chunk *domain.KnowledgeChunk, vector []float32) error
	Search(ctx context.Context, tenantID string, queryVector []float32, filter SearchFilter, topK int) ([]Candidate, error)
	Delete(ctx context.Context, tenantID string, selector DeleteSelector) error
}

// Embedder converts text to fixed-length vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer performs one chat completion call
type Completer interface {
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
}

package domain

import (
	"fmt"
	"time"
)

// KnowledgeChunk is a contiguous span of source text with its embedding
// stored in the vector index. Position orders chunks within a source.
type KnowledgeChunk struct {
	ID             string
	TenantID       string
	SourceID       string
	SourceType     SourceType
	SourceTitle    string
	Text           string
	Position       int
	EmbeddingModel string
	CreatedAt      time.Time
}

// NewKnowledgeChunk creates a new KnowledgeChunk instance
func NewKnowledgeChunk(
	id, tenantID, sourceID string,
	sourceType SourceType,
	text string,
	position int,
	embeddingModel string,
	createdAt time.Time,
) *KnowledgeChunk {
	return &KnowledgeChunk{
		ID:             id,
		TenantID:       tenantID,
		SourceID:       sourceID,
		SourceType:     sourceType,
		Text:           text,
		Position:       position,
		EmbeddingModel: embeddingModel,
		CreatedAt:      createdAt,
	}
}

// ValidateKnowledgeChunk validates a KnowledgeChunk instance
func ValidateKnowledgeChunk(c *KnowledgeChunk) error {
	if c == nil {
		return fmt.Errorf("knowledge chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("knowledge chunk ID is required")
	}

	if c.TenantID == "" {
		return fmt.Errorf("knowledge chunk TenantID is required")
	}

	if c.SourceID == "" {
		return fmt.Errorf("knowledge chunk SourceID is required")
	}

	if c.Text == "" {
		return fmt.Errorf("knowledge chunk Text is required")
	}

	if c.Position < 0 {
		return fmt.Errorf("knowledge chunk Position cannot be negative")
	}

	if !isValidSourceType(c.SourceType) {
		return fmt.Errorf("knowledge chunk SourceType is invalid: %s", c.SourceType)
	}

	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/rag"
)

// ChunkIndexRepository stores knowledge chunks with their embeddings
// and serves filtered nearest-neighbor search. It is the vector index
// behind the retrieval pipeline; every query is constrained to one
// tenant at the SQL level.
type ChunkIndexRepository struct {
	db dbtx
}

func NewChunkIndexRepository(pool *pgxpool.Pool) *ChunkIndexRepository {
	return &ChunkIndexRepository{db: pool}
}

func NewChunkIndexRepositoryWithTx(tx pgx.Tx) *ChunkIndexRepository {
	return &ChunkIndexRepository{db: tx}
}

// Upsert inserts or replaces the entry keyed by chunk ID. Idempotent.
func (r *ChunkIndexRepository) Upsert(ctx context.Context, chunk *domain.KnowledgeChunk, vector []float32) error {
	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_chunks
			(id, tenant_id, source_id, source_type, source_title, content, position, embedding_model, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			source_id = EXCLUDED.source_id,
			source_type = EXCLUDED.source_type,
			source_title = EXCLUDED.source_title,
			content = EXCLUDED.content,
			position = EXCLUDED.position,
			embedding_model = EXCLUDED.embedding_model,
			embedding = EXCLUDED.embedding,
			created_at = EXCLUDED.created_at`,
		chunk.ID,
		chunk.TenantID,
		chunk.SourceID,
		chunk.SourceType,
		chunk.SourceTitle,
		chunk.Text,
		chunk.Position,
		chunk.EmbeddingModel,
		pgvector.NewVector(vector),
		createdAt,
	)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "vector index unavailable", err)
	}
	return nil
}

// Search returns at most topK candidates for the tenant sorted by
// descending similarity score. An empty index yields an empty slice,
// not an error. Ties are broken by id for determinism.
func (r *ChunkIndexRepository) Search(ctx context.Context, tenantID string, queryVector []float32, filter rag.SearchFilter, topK int) ([]rag.Candidate, error) {
	if topK <= 0 {
		topK = 5
	}

	vec := pgvector.NewVector(queryVector)

	query := `
		SELECT id, tenant_id, source_id, source_type, source_title, content,
		       1.0 / (1.0 + (embedding <=> $1)) AS score
		FROM knowledge_chunks
		WHERE tenant_id = $2`
	args := []any{vec, tenantID}

	if len(filter.SourceTypes) > 0 {
		typeStrings := make([]string, len(filter.SourceTypes))
		for i, t := range filter.SourceTypes {
			typeStrings[i] = string(t)
		}
		args = append(args, typeStrings)
		query += fmt.Sprintf(` AND source_type = ANY($%d)`, len(args))
	}

	args = append(args, topK)
	query += fmt.Sprintf(` ORDER BY score DESC, id ASC LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "vector index unavailable", err)
	}
	defer rows.Close()

	candidates := make([]rag.Candidate, 0, topK)
	for rows.Next() {
		var c rag.Candidate
		var sourceType string
		if err := rows.Scan(&c.ChunkID, &c.TenantID, &c.SourceID, &sourceType, &c.SourceTitle, &c.Text, &c.Score); err != nil {
			return nil, err
		}
		c.SourceType = domain.SourceType(sourceType)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// Delete removes all entries matching the selector for one tenant
func (r *ChunkIndexRepository) Delete(ctx context.Context, tenantID string, selector rag.DeleteSelector) error {
	query := `DELETE FROM knowledge_chunks WHERE tenant_id = $1`
	args := []any{tenantID}

	if selector.SourceID != "" {
		args = append(args, selector.SourceID)
		query += fmt.Sprintf(` AND source_id = $%d`, len(args))
	}
	if len(selector.SourceTypes) > 0 {
		typeStrings := make([]string, len(selector.SourceTypes))
		for i, t := range selector.SourceTypes {
			typeStrings[i] = string(t)
		}
		args = append(args, typeStrings)
		query += fmt.Sprintf(` AND source_type = ANY($%d)`, len(args))
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "vector index unavailable", err)
	}
	return nil
}

// CountByTenant reports how many chunks a tenant has indexed
func (r *ChunkIndexRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM knowledge_chunks WHERE tenant_id = $1`,
		tenantID,
	).Scan(&count)
	return count, err
}

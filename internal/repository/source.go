package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/pagination"
	"github.com/replyforge/replyforge/internal/service"
)

type SourceRepository struct {
	db dbtx
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: pool}
}

func NewSourceRepositoryWithTx(tx pgx.Tx) *SourceRepository {
	return &SourceRepository{db: tx}
}

func (r *SourceRepository) Create(ctx context.Context, s *domain.Source) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sources (id, tenant_id, type, status, title, url, storage_key, answer, fail_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.TenantID, s.Type, s.Status, s.Title,
		nullableString(s.URL), nullableString(s.StorageKey), nullableString(s.Answer), nullableString(s.FailReason),
		s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// GetByID is tenant-scoped: a source is only visible to its own tenant.
func (r *SourceRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Source, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, tenant_id, type, status, title, url, storage_key, answer, fail_reason, created_at, updated_at
		 FROM sources WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	return scanSource(row)
}

func (r *SourceRepository) ListByTenant(ctx context.Context, tenantID string, types []domain.SourceType, cursor *pagination.Cursor, limit int) (*service.SourcePage, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, tenant_id, type, status, title, url, storage_key, answer, fail_reason, created_at, updated_at
		 FROM sources WHERE tenant_id = $1`
	args := []any{tenantID}

	if len(types) > 0 {
		typeStrings := make([]string, len(types))
		for i, t := range types {
			typeStrings[i] = string(t)
		}
		args = append(args, typeStrings)
		query += ` AND type = ANY($2)`
	}

	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		query += fmt.Sprintf(` AND (created_at, id) < ($%d, $%d)`, len(args)-1, len(args))
	}

	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(sources) > limit
	if hasMore {
		sources = sources[:limit]
	}

	var nextCursor string
	if hasMore && len(sources) > 0 {
		last := sources[len(sources)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.SourcePage{
		Items:      sources,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *SourceRepository) UpdateStatus(ctx context.Context, tenantID, id string, status domain.SourceStatus, failReason string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE sources SET status = $1, fail_reason = $2, updated_at = $3 WHERE tenant_id = $4 AND id = $5`,
		status, nullableString(failReason), time.Now().UTC(), tenantID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

func (r *SourceRepository) Delete(ctx context.Context, tenantID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM sources WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

func scanSource(row pgx.Row) (*domain.Source, error) {
	var s domain.Source
	var url, storageKey, answer, failReason pgtype.Text
	err := row.Scan(&s.ID, &s.TenantID, &s.Type, &s.Status, &s.Title, &url, &storageKey, &answer, &failReason, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}
	if url.Valid {
		s.URL = url.String
	}
	if storageKey.Valid {
		s.StorageKey = storageKey.String
	}
	if answer.Valid {
		s.Answer = answer.String
	}
	if failReason.Valid {
		s.FailReason = failReason.String
	}
	return &s, nil
}

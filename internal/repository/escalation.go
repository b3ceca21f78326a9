package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replyforge/replyforge/internal/domain"
)

type EscalationRepository struct {
	pool *pgxpool.Pool
}

func NewEscalationRepository(pool *pgxpool.Pool) *EscalationRepository {
	return &EscalationRepository{pool: pool}
}

func (r *EscalationRepository) Create(ctx context.Context, e *domain.Escalation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO escalations (id, tenant_id, conversation_id, reason, status, created_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.TenantID, e.ConversationID, nullableString(e.Reason), e.Status, e.CreatedAt, e.ResolvedAt,
	)
	return err
}

func (r *EscalationRepository) ListOpenByTenant(ctx context.Context, tenantID string) ([]*domain.Escalation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, conversation_id, reason, status, created_at, resolved_at
		 FROM escalations
		 WHERE tenant_id = $1 AND status = $2
		 ORDER BY created_at DESC`,
		tenantID, domain.EscalationStatusOpen,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escalations []*domain.Escalation
	for rows.Next() {
		var e domain.Escalation
		var reason pgtype.Text
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ConversationID, &reason, &e.Status, &e.CreatedAt, &e.ResolvedAt); err != nil {
			return nil, err
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		escalations = append(escalations, &e)
	}
	return escalations, rows.Err()
}

func (r *EscalationRepository) Resolve(ctx context.Context, tenantID, id string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`UPDATE escalations SET status = $1, resolved_at = $2 WHERE tenant_id = $3 AND id = $4`,
		domain.EscalationStatusResolved, now, tenantID, id,
	)
	return err
}

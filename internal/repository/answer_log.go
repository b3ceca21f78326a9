package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/pagination"
	"github.com/replyforge/replyforge/internal/service"
)

type AnswerLogRepository struct {
	pool *pgxpool.Pool
}

func NewAnswerLogRepository(pool *pgxpool.Pool) *AnswerLogRepository {
	return &AnswerLogRepository{pool: pool}
}

func (r *AnswerLogRepository) Create(ctx context.Context, l *domain.AnswerLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answer_logs (id, tenant_id, conversation_id, intent, state, question, answer, candidate_count, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.TenantID, l.ConversationID, l.Intent, l.State, l.Question, l.Answer, l.CandidateCount, l.DurationMS, l.CreatedAt,
	)
	return err
}

func (r *AnswerLogRepository) ListByTenant(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*service.AnswerLogPage, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, tenant_id, conversation_id, intent, state, question, answer, candidate_count, duration_ms, created_at
		 FROM answer_logs WHERE tenant_id = $1`
	args := []any{tenantID}

	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		query += fmt.Sprintf(` AND (created_at, id) < ($%d, $%d)`, len(args)-1, len(args))
	}

	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.AnswerLog
	for rows.Next() {
		var l domain.AnswerLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.ConversationID, &l.Intent, &l.State, &l.Question, &l.Answer, &l.CandidateCount, &l.DurationMS, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(logs) > limit
	if hasMore {
		logs = logs[:limit]
	}

	var nextCursor string
	if hasMore && len(logs) > 0 {
		last := logs[len(logs)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.AnswerLogPage{
		Items:      logs,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// StatsByTenant aggregates outcomes since the given time
func (r *AnswerLogRepository) StatsByTenant(ctx context.Context, tenantID string, since time.Time) (*service.AnswerStats, error) {
	var stats service.AnswerStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE state = $1),
		        COUNT(*) FILTER (WHERE state = $2),
		        COUNT(*) FILTER (WHERE intent = $3),
		        COALESCE(AVG(duration_ms), 0)
		 FROM answer_logs
		 WHERE tenant_id = $4 AND created_at >= $5`,
		domain.AnswerStateDelivered, domain.AnswerStateFailed, domain.IntentEscalation, tenantID, since,
	).Scan(&stats.Total, &stats.Delivered, &stats.Failed, &stats.Escalated, &stats.AvgDurationMS)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

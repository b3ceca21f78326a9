package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/pagination"
	"github.com/replyforge/replyforge/internal/service"
)

type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (id, tenant_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		c.ID, c.TenantID, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *ConversationRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.QueryRow(ctx,
		`SELECT id, tenant_id, created_at, updated_at
		 FROM conversations WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&c.ID, &c.TenantID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) ListByTenant(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*service.ConversationPage, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, tenant_id, created_at, updated_at
		 FROM conversations WHERE tenant_id = $1`
	args := []any{tenantID}

	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		query += fmt.Sprintf(` AND (updated_at, id) < ($%d, $%d)`, len(args)-1, len(args))
	}

	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY updated_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.TenantID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(conversations) > limit
	if hasMore {
		conversations = conversations[:limit]
	}

	var nextCursor string
	if hasMore && len(conversations) > 0 {
		last := conversations[len(conversations)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.UpdatedAt)
	}

	return &service.ConversationPage{
		Items:      conversations,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// AppendMessage adds one turn to the conversation's append-only log
// and bumps the conversation's updated_at.
func (r *ConversationRepository) AppendMessage(ctx context.Context, m *domain.Message) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, tenant_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ConversationID, m.TenantID, m.Role, m.Content, m.CreatedAt,
	)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE tenant_id = $2 AND id = $3`,
		time.Now().UTC(), m.TenantID, m.ConversationID,
	)
	return err
}

// ListMessages returns the conversation's messages oldest first
func (r *ConversationRepository) ListMessages(ctx context.Context, tenantID, conversationID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, tenant_id, role, content, created_at
		 FROM (
			SELECT id, conversation_id, tenant_id, role, content, created_at
			FROM messages
			WHERE tenant_id = $1 AND conversation_id = $2
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		tenantID, conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.TenantID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

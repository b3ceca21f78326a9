package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/pagination"
	"github.com/replyforge/replyforge/internal/rag"
)

// SourcePage is one page of a tenant's sources
type SourcePage struct {
	Items      []*domain.Source
	NextCursor string
	HasMore    bool
}

// ConversationPage is one page of a tenant's conversations
type ConversationPage struct {
	Items      []*domain.Conversation
	NextCursor string
	HasMore    bool
}

// AnswerLogPage is one page of a tenant's answer logs
type AnswerLogPage struct {
	Items      []*domain.AnswerLog
	NextCursor string
	HasMore    bool
}

// AnswerStats aggregates answered messages for one tenant
type AnswerStats struct {
	Total         int64
	Delivered     int64
	Failed        int64
	Escalated     int64
	AvgDurationMS float64
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// TenantStore persists tenants
type TenantStore interface {
	Create(ctx context.Context, t *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetByName(ctx context.Context, name string) (*domain.Tenant, error)
	List(ctx context.Context) ([]*domain.Tenant, error)
	UpdateSettings(ctx context.Context, id string, settings domain.TenantSettings) error
}

// APIKeyStore persists API keys
type APIKeyStore interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	GetByTenantID(ctx context.Context, tenantID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// SourceStore persists knowledge sources
type SourceStore interface {
	Create(ctx context.Context, s *domain.Source) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Source, error)
	ListByTenant(ctx context.Context, tenantID string, types []domain.SourceType, cursor *pagination.Cursor, limit int) (*SourcePage, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status domain.SourceStatus, failReason string) error
	Delete(ctx context.Context, tenantID, id string) error
}

// ConversationStore persists conversations and their message logs
type ConversationStore interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Conversation, error)
	ListByTenant(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*ConversationPage, error)
	AppendMessage(ctx context.Context, m *domain.Message) error
	ListMessages(ctx context.Context, tenantID, conversationID string, limit int) ([]*domain.Message, error)
}

// EscalationStore persists human handoff records
type EscalationStore interface {
	Create(ctx context.Context, e *domain.Escalation) error
	ListOpenByTenant(ctx context.Context, tenantID string) ([]*domain.Escalation, error)
	Resolve(ctx context.Context, tenantID, id string) error
}

// IngestJobStore persists async ingestion jobs
type IngestJobStore interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
	Requeue(ctx context.Context, id string, errMsg string) error
}

// AnswerLogStore persists answered-message records for analytics
type AnswerLogStore interface {
	Create(ctx context.Context, l *domain.AnswerLog) error
	ListByTenant(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*AnswerLogPage, error)
	StatsByTenant(ctx context.Context, tenantID string, since time.Time) (*AnswerStats, error)
}

// TxRepositories exposes repositories bound to one transaction
type TxRepositories interface {
	Sources() SourceStore
	ChunkIndex() rag.VectorIndex
	IngestJobs() IngestJobStore
}

// TxManager runs a function inside a database transaction
type TxManager interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

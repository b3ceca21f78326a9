package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/pagination"
	"github.com/replyforge/replyforge/internal/rag"
)

func testTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	mock.Mock
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

type MockTenantStore struct {
	mock.Mock
}

func (m *MockTenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTenantStore) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantStore) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantStore) List(ctx context.Context) ([]*domain.Tenant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Tenant), args.Error(1)
}

func (m *MockTenantStore) UpdateSettings(ctx context.Context, id string, settings domain.TenantSettings) error {
	args := m.Called(ctx, id, settings)
	return args.Error(0)
}

type MockAPIKeyStore struct {
	mock.Mock
}

func (m *MockAPIKeyStore) Create(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAPIKeyStore) GetByID(ctx context.Context, id string) (*domain.APIKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyStore) GetByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyStore) GetByTenantID(ctx context.Context, tenantID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyStore) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAPIKeyStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockSourceStore struct {
	mock.Mock
}

func (m *MockSourceStore) Create(ctx context.Context, s *domain.Source) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSourceStore) GetByID(ctx context.Context, tenantID, id string) (*domain.Source, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceStore) ListByTenant(ctx context.Context, tenantID string, types []domain.SourceType, cursor *pagination.Cursor, limit int) (*SourcePage, error) {
	args := m.Called(ctx, tenantID, types, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SourcePage), args.Error(1)
}

func (m *MockSourceStore) UpdateStatus(ctx context.Context, tenantID, id string, status domain.SourceStatus, failReason string) error {
	args := m.Called(ctx, tenantID, id, status, failReason)
	return args.Error(0)
}

func (m *MockSourceStore) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

type MockConversationStore struct {
	mock.Mock
}

func (m *MockConversationStore) Create(ctx context.Context, c *domain.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConversationStore) GetByID(ctx context.Context, tenantID, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) ListByTenant(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*ConversationPage, error) {
	args := m.Called(ctx, tenantID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ConversationPage), args.Error(1)
}

func (m *MockConversationStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockConversationStore) ListMessages(ctx context.Context, tenantID, conversationID string, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, tenantID, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

type MockEscalationStore struct {
	mock.Mock
}

func (m *MockEscalationStore) Create(ctx context.Context, e *domain.Escalation) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEscalationStore) ListOpenByTenant(ctx context.Context, tenantID string) ([]*domain.Escalation, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Escalation), args.Error(1)
}

func (m *MockEscalationStore) Resolve(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

type MockIngestJobStore struct {
	mock.Mock
}

func (m *MockIngestJobStore) Create(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockIngestJobStore) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobStore) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobStore) UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockIngestJobStore) IncrementRetries(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIngestJobStore) Requeue(ctx context.Context, id, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

type MockAnswerLogStore struct {
	mock.Mock
}

func (m *MockAnswerLogStore) Create(ctx context.Context, l *domain.AnswerLog) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockAnswerLogStore) ListByTenant(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*AnswerLogPage, error) {
	args := m.Called(ctx, tenantID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AnswerLogPage), args.Error(1)
}

func (m *MockAnswerLogStore) StatsByTenant(ctx context.Context, tenantID string, since time.Time) (*AnswerStats, error) {
	args := m.Called(ctx, tenantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AnswerStats), args.Error(1)
}

type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Upsert(ctx context.Context, chunk *domain.KnowledgeChunk, embedding []float32) error {
	args := m.Called(ctx, chunk, embedding)
	return args.Error(0)
}

func (m *MockVectorIndex) Search(ctx context.Context, tenantID string, queryVector []float32, filter rag.SearchFilter, topK int) ([]rag.Candidate, error) {
	args := m.Called(ctx, tenantID, queryVector, filter, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rag.Candidate), args.Error(1)
}

func (m *MockVectorIndex) Delete(ctx context.Context, tenantID string, selector rag.DeleteSelector) error {
	args := m.Called(ctx, tenantID, selector)
	return args.Error(0)
}

// mockTxManager runs the callback against fixed repositories without a real transaction.
type mockTxManager struct {
	repos mockTxRepos
}

type mockTxRepos struct {
	sources *MockSourceStore
	index   *MockVectorIndex
	jobs    *MockIngestJobStore
}

func (r mockTxRepos) Sources() SourceStore       { return r.sources }
func (r mockTxRepos) ChunkIndex() rag.VectorIndex { return r.index }
func (r mockTxRepos) IngestJobs() IngestJobStore { return r.jobs }

func (m *mockTxManager) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	return fn(m.repos)
}

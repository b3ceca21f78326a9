package service

import (
	"context"
	"time"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/pagination"
	"github.com/replyforge/replyforge/internal/telemetry"
)

// historyWindow bounds how many prior messages are loaded per turn
const historyWindow = 20

// ConversationService manages conversation logs and escalations
type ConversationService struct {
	convRepo       ConversationStore
	escalationRepo EscalationStore
	uuidGen        UUIDGenerator
}

func NewConversationService(convRepo ConversationStore, escalationRepo EscalationStore) *ConversationService {
	return &ConversationService{
		convRepo:       convRepo,
		escalationRepo: escalationRepo,
		uuidGen:        &DefaultUUIDGenerator{},
	}
}

func NewConversationServiceWithUUIDGen(convRepo ConversationStore, escalationRepo EscalationStore, uuidGen UUIDGenerator) *ConversationService {
	return &ConversationService{
		convRepo:       convRepo,
		escalationRepo: escalationRepo,
		uuidGen:        uuidGen,
	}
}

// GetOrCreate loads an existing conversation or starts a new one when
// conversationID is empty or unknown for this tenant.
func (s *ConversationService) GetOrCreate(ctx context.Context, tenantID, conversationID string) (*domain.Conversation, error) {
	if conversationID != "" {
		conv, err := s.convRepo.GetByID(ctx, tenantID, conversationID)
		if err == nil {
			return conv, nil
		}
		if err != domain.ErrConversationNotFound {
			return nil, err
		}
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        s.uuidGen.NewString(),
		TenantID:  tenantID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, err
	}

	return conv, nil
}

// History returns the most recent messages in chronological order
func (s *ConversationService) History(ctx context.Context, tenantID, conversationID string) ([]*domain.Message, error) {
	return s.convRepo.ListMessages(ctx, tenantID, conversationID, historyWindow)
}

// Append writes one message to the conversation log
func (s *ConversationService) Append(ctx context.Context, tenantID, conversationID string, role domain.MessageRole, content string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:             s.uuidGen.NewString(),
		ConversationID: conversationID,
		TenantID:       tenantID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.convRepo.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

type ListConversationsInput struct {
	TenantID string
	Cursor   string
	Limit    int
}

type ListConversationsOutput struct {
	Items   []*domain.Conversation
	Cursor  string
	HasMore bool
}

func (s *ConversationService) ListConversations(ctx context.Context, input ListConversationsInput) (*ListConversationsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.ListConversations", telemetry.SpanAttributes{
		TenantID:  input.TenantID,
		Operation: "list",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.convRepo.ListByTenant(ctx, input.TenantID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListConversationsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// OpenEscalation records a human handoff request for a conversation
func (s *ConversationService) OpenEscalation(ctx context.Context, tenantID, conversationID, reason string) (*domain.Escalation, error) {
	esc := &domain.Escalation{
		ID:             s.uuidGen.NewString(),
		TenantID:       tenantID,
		ConversationID: conversationID,
		Reason:         reason,
		Status:         domain.EscalationStatusOpen,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.escalationRepo.Create(ctx, esc); err != nil {
		return nil, err
	}

	return esc, nil
}

func (s *ConversationService) ListOpenEscalations(ctx context.Context, tenantID string) ([]*domain.Escalation, error) {
	return s.escalationRepo.ListOpenByTenant(ctx, tenantID)
}

func (s *ConversationService) ResolveEscalation(ctx context.Context, tenantID, id string) error {
	if id == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "escalation ID is required")
	}
	return s.escalationRepo.Resolve(ctx, tenantID, id)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/replyforge/replyforge/internal/domain"
)

func TestConversationService_GetOrCreate_NewConversation(t *testing.T) {
	ctx := context.Background()
	convRepo := new(MockConversationStore)
	escRepo := new(MockEscalationStore)
	svc := NewConversationServiceWithUUIDGen(convRepo, escRepo, NewMockUUIDGenerator("conv-1"))

	convRepo.On("Create", ctx, mock.MatchedBy(func(c *domain.Conversation) bool {
		return c.ID == "conv-1" && c.TenantID == "tenant-1"
	})).Return(nil)

	conv, err := svc.GetOrCreate(ctx, "tenant-1", "")

	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.ID)
	convRepo.AssertExpectations(t)
}

func TestConversationService_GetOrCreate_ExistingConversation(t *testing.T) {
	ctx := context.Background()
	convRepo := new(MockConversationStore)
	escRepo := new(MockEscalationStore)
	svc := NewConversationServiceWithUUIDGen(convRepo, escRepo, NewMockUUIDGenerator())

	existing := domain.NewConversation("conv-1", "tenant-1", testTime())
	convRepo.On("GetByID", ctx, "tenant-1", "conv-1").Return(existing, nil)

	conv, err := svc.GetOrCreate(ctx, "tenant-1", "conv-1")

	require.NoError(t, err)
	assert.Equal(t, existing, conv)
	convRepo.AssertNotCalled(t, "Create")
}

func TestConversationService_GetOrCreate_UnknownIDStartsFresh(t *testing.T) {
	ctx := context.Background()
	convRepo := new(MockConversationStore)
	escRepo := new(MockEscalationStore)
	svc := NewConversationServiceWithUUIDGen(convRepo, escRepo, NewMockUUIDGenerator("conv-2"))

	convRepo.On("GetByID", ctx, "tenant-1", "missing").Return(nil, domain.ErrConversationNotFound)
	convRepo.On("Create", ctx, mock.Anything).Return(nil)

	conv, err := svc.GetOrCreate(ctx, "tenant-1", "missing")

	require.NoError(t, err)
	assert.Equal(t, "conv-2", conv.ID)
}

func TestConversationService_Append(t *testing.T) {
	ctx := context.Background()
	convRepo := new(MockConversationStore)
	escRepo := new(MockEscalationStore)
	svc := NewConversationServiceWithUUIDGen(convRepo, escRepo, NewMockUUIDGenerator("msg-1"))

	convRepo.On("AppendMessage", ctx, mock.MatchedBy(func(m *domain.Message) bool {
		return m.ID == "msg-1" &&
			m.ConversationID == "conv-1" &&
			m.Role == domain.MessageRoleUser &&
			m.Content == "hello"
	})).Return(nil)

	msg, err := svc.Append(ctx, "tenant-1", "conv-1", domain.MessageRoleUser, "hello")

	require.NoError(t, err)
	assert.Equal(t, "msg-1", msg.ID)
	convRepo.AssertExpectations(t)
}

func TestConversationService_OpenEscalation(t *testing.T) {
	ctx := context.Background()
	convRepo := new(MockConversationStore)
	escRepo := new(MockEscalationStore)
	svc := NewConversationServiceWithUUIDGen(convRepo, escRepo, NewMockUUIDGenerator("esc-1"))

	escRepo.On("Create", ctx, mock.MatchedBy(func(e *domain.Escalation) bool {
		return e.ID == "esc-1" &&
			e.ConversationID == "conv-1" &&
			e.Status == domain.EscalationStatusOpen &&
			e.Reason == "angry customer"
	})).Return(nil)

	esc, err := svc.OpenEscalation(ctx, "tenant-1", "conv-1", "angry customer")

	require.NoError(t, err)
	assert.Equal(t, domain.EscalationStatusOpen, esc.Status)
	escRepo.AssertExpectations(t)
}

func TestConversationService_ResolveEscalation_EmptyID(t *testing.T) {
	ctx := context.Background()
	svc := NewConversationServiceWithUUIDGen(new(MockConversationStore), new(MockEscalationStore), NewMockUUIDGenerator())

	err := svc.ResolveEscalation(ctx, "tenant-1", "")

	assert.Error(t, err)
}

func TestConversationService_ListConversations_DefaultLimit(t *testing.T) {
	ctx := context.Background()
	convRepo := new(MockConversationStore)
	svc := NewConversationServiceWithUUIDGen(convRepo, new(MockEscalationStore), NewMockUUIDGenerator())

	page := &ConversationPage{
		Items:   []*domain.Conversation{domain.NewConversation("conv-1", "tenant-1", testTime())},
		HasMore: false,
	}
	convRepo.On("ListByTenant", ctx, "tenant-1", mock.Anything, 20).Return(page, nil)

	out, err := svc.ListConversations(ctx, ListConversationsInput{TenantID: "tenant-1"})

	require.NoError(t, err)
	assert.Len(t, out.Items, 1)
	assert.False(t, out.HasMore)
}

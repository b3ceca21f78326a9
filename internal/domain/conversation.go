package domain

import (
	"fmt"
	"time"
)

// MessageRole identifies the author of a conversation message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Conversation groups the messages exchanged with one end user
type Conversation struct {
	ID        string
	TenantID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single turn in a conversation. Messages are append-only.
type Message struct {
	ID             string
	ConversationID string
	TenantID       string
	Role           MessageRole
	Content        string
	CreatedAt      time.Time
}

// NewConversation creates a new Conversation instance
func NewConversation(id, tenantID string, createdAt time.Time) *Conversation {
	return &Conversation{
		ID:        id,
		TenantID:  tenantID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// NewMessage creates a new Message instance
func NewMessage(id, conversationID, tenantID string, role MessageRole, content string, createdAt time.Time) *Message {
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		TenantID:       tenantID,
		Role:           role,
		Content:        content,
		CreatedAt:      createdAt,
	}
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}

	if m.ConversationID == "" {
		return fmt.Errorf("message ConversationID is required")
	}

	if m.TenantID == "" {
		return fmt.Errorf("message TenantID is required")
	}

	if m.Content == "" {
		return fmt.Errorf("message Content is required")
	}

	if !isValidMessageRole(m.Role) {
		return fmt.Errorf("message Role is invalid: %s", m.Role)
	}

	return nil
}

// isValidMessageRole checks if a MessageRole is valid
func isValidMessageRole(r MessageRole) bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant:
		return true
	}
	return false
}

package domain

import (
	"fmt"
	"time"
)

// EscalationStatus tracks a human handoff request
type EscalationStatus string

const (
	EscalationStatusOpen     EscalationStatus = "open"
	EscalationStatusResolved EscalationStatus = "resolved"
)

// Escalation records a conversation handed off to a human agent
type Escalation struct {
	ID             string
	TenantID       string
	ConversationID string
	Reason         string
	Status         EscalationStatus
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// NewEscalation creates a new open Escalation instance
func NewEscalation(id, tenantID, conversationID, reason string, createdAt time.Time) *Escalation {
	return &Escalation{
		ID:             id,
		TenantID:       tenantID,
		ConversationID: conversationID,
		Reason:         reason,
		Status:         EscalationStatusOpen,
		CreatedAt:      createdAt,
	}
}

// ValidateEscalation validates an Escalation instance
func ValidateEscalation(e *Escalation) error {
	if e == nil {
		return fmt.Errorf("escalation cannot be nil")
	}

	if e.ID == "" {
		return fmt.Errorf("escalation ID is required")
	}

	if e.TenantID == "" {
		return fmt.Errorf("escalation TenantID is required")
	}

	if e.ConversationID == "" {
		return fmt.Errorf("escalation ConversationID is required")
	}

	return nil
}

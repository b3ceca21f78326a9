package domain

import (
	"fmt"
	"time"
)

// SourceType represents the kind of knowledge source
type SourceType string

const (
	SourceTypeDocument SourceType = "document"
	SourceTypeWebsite  SourceType = "website"
	SourceTypeFAQ      SourceType = "faq"
)

// SourceStatus represents the ingestion state of a source
type SourceStatus string

const (
	SourceStatusPending    SourceStatus = "pending"
	SourceStatusProcessing SourceStatus = "processing"
	SourceStatusReady      SourceStatus = "ready"
	SourceStatusFailed     SourceStatus = "failed"
)

// Source represents a unit of tenant knowledge awaiting or past ingestion.
// Documents carry a StorageKey pointing at the uploaded file, websites
// carry the URL that was crawled, FAQs carry the question in Title and
// the answer inline.
type Source struct {
	ID         string
	TenantID   string
	Type       SourceType
	Status     SourceStatus
	Title      string
	URL        string
	StorageKey string
	Answer     string
	FailReason string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewSource creates a new Source instance in the pending state
func NewSource(id, tenantID string, sourceType SourceType, title string, createdAt time.Time) *Source {
	return &Source{
		ID:        id,
		TenantID:  tenantID,
		Type:      sourceType,
		Status:    SourceStatusPending,
		Title:     title,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// ValidateSource validates a Source instance
func ValidateSource(s *Source) error {
	if s == nil {
		return fmt.Errorf("source cannot be nil")
	}

	if s.ID == "" {
		return fmt.Errorf("source ID is required")
	}

	if s.TenantID == "" {
		return fmt.Errorf("source TenantID is required")
	}

	if s.Title == "" {
		return fmt.Errorf("source Title is required")
	}

	if !isValidSourceType(s.Type) {
		return fmt.Errorf("source Type is invalid: %s", s.Type)
	}

	if !isValidSourceStatus(s.Status) {
		return fmt.Errorf("source Status is invalid: %s", s.Status)
	}

	if s.Type == SourceTypeWebsite && s.URL == "" {
		return fmt.Errorf("source URL is required for website sources")
	}

	if s.Type == SourceTypeFAQ && s.Answer == "" {
		return fmt.Errorf("source Answer is required for faq sources")
	}

	return nil
}

// isValidSourceType checks if a SourceType is valid
func isValidSourceType(t SourceType) bool {
	switch t {
	case SourceTypeDocument, SourceTypeWebsite, SourceTypeFAQ:
		return true
	}
	return false
}

// isValidSourceStatus checks if a SourceStatus is valid
func isValidSourceStatus(s SourceStatus) bool {
	switch s {
	case SourceStatusPending, SourceStatusProcessing, SourceStatusReady, SourceStatusFailed:
		return true
	}
	return false
}

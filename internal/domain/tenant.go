package domain

import (
	"fmt"
	"time"
)

// Tenant represents an isolated customer account in the system
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Settings  TenantSettings
}

// TenantSettings holds per-tenant answer generation configuration
type TenantSettings struct {
	ModelName    string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// DefaultSystemPrompt is used when a tenant has not configured one
const DefaultSystemPrompt = "You are a helpful customer support assistant. " +
	"Answer using only the provided context. If the context does not " +
	"contain the answer, say you do not know and offer to connect the " +
	"customer with a human agent."

// DefaultTenantSettings returns the settings applied to new tenants
func DefaultTenantSettings() TenantSettings {
	return TenantSettings{
		ModelName:    "gpt-4o-mini",
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  0.3,
		MaxTokens:    800,
	}
}

// NewTenant creates a new Tenant instance
func NewTenant(id, name string, createdAt time.Time) *Tenant {
	return &Tenant{
		ID:        id,
		Name:      name,
		CreatedAt: createdAt,
		Settings:  DefaultTenantSettings(),
	}
}

// ValidateTenant validates a Tenant instance
func ValidateTenant(t *Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant cannot be nil")
	}

	if t.ID == "" {
		return fmt.Errorf("tenant ID is required")
	}

	if t.Name == "" {
		return fmt.Errorf("tenant Name is required")
	}

	if t.Settings.Temperature < 0 || t.Settings.Temperature > 2 {
		return fmt.Errorf("tenant Temperature must be between 0 and 2")
	}

	if t.Settings.MaxTokens < 0 {
		return fmt.Errorf("tenant MaxTokens cannot be negative")
	}

	return nil
}

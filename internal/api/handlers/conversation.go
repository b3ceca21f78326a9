package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/replyforge/replyforge/internal/api"
	"github.com/replyforge/replyforge/internal/api/middleware"
	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/service"
)

type ConversationReader interface {
	History(ctx context.Context, tenantID, conversationID string) ([]*domain.Message, error)
	ListConversations(ctx context.Context, input service.ListConversationsInput) (*service.ListConversationsOutput, error)
	ListOpenEscalations(ctx context.Context, tenantID string) ([]*domain.Escalation, error)
	ResolveEscalation(ctx context.Context, tenantID, id string) error
}

type ConversationHandler struct {
	svc ConversationReader
}

func NewConversationHandler(svc ConversationReader) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type ConversationResponse struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type EscalationResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Reason         string `json:"reason"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	ResolvedAt     string `json:"resolved_at,omitempty"`
}

type ConversationListResponse struct {
	Items   []*ConversationResponse `json:"items"`
	Cursor  string                  `json:"cursor,omitempty"`
	HasMore bool                    `json:"has_more"`
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.ListConversations(r.Context(), service.ListConversationsInput{
		TenantID: tenantID,
		Cursor:   cursor,
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ConversationResponse, len(output.Items))
	for i, c := range output.Items {
		responses[i] = &ConversationResponse{
			ID:        c.ID,
			TenantID:  c.TenantID,
			CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z"),
			UpdatedAt: c.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	api.Success(w, http.StatusOK, ConversationListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	messages, err := h.svc.History(r.Context(), tenantID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = &MessageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *ConversationHandler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	escalations, err := h.svc.ListOpenEscalations(r.Context(), tenantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*EscalationResponse, len(escalations))
	for i, e := range escalations {
		resp := &EscalationResponse{
			ID:             e.ID,
			ConversationID: e.ConversationID,
			Reason:         e.Reason,
			Status:         string(e.Status),
			CreatedAt:      e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if e.ResolvedAt != nil {
			resp.ResolvedAt = e.ResolvedAt.Format("2006-01-02T15:04:05Z")
		}
		responses[i] = resp
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *ConversationHandler) ResolveEscalation(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.ResolveEscalation(r.Context(), tenantID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

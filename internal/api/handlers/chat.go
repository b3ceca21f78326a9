package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/replyforge/replyforge/internal/api"
	"github.com/replyforge/replyforge/internal/api/middleware"
	"github.com/replyforge/replyforge/internal/service"
)

type AnswerService interface {
	AnswerQuery(ctx context.Context, tenantID, conversationID, userMessage string) (*service.AnswerOutput, error)
}

type ChatHandler struct {
	svc AnswerService
}

func NewChatHandler(svc AnswerService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type CitedSourceResponse struct {
	SourceID    string  `json:"source_id"`
	SourceTitle string  `json:"source_title"`
	SourceType  string  `json:"source_type"`
	Score       float64 `json:"score"`
}

type ChatResponse struct {
	ConversationID string                `json:"conversation_id"`
	Answer         string                `json:"answer"`
	Intent         string                `json:"intent"`
	State          string                `json:"state"`
	CitedSources   []CitedSourceResponse `json:"cited_sources"`
}

func (h *ChatHandler) Answer(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	out, err := h.svc.AnswerQuery(r.Context(), tenantID, req.ConversationID, req.Message)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	cited := make([]CitedSourceResponse, len(out.CitedSources))
	for i, c := range out.CitedSources {
		cited[i] = CitedSourceResponse{
			SourceID:    c.SourceID,
			SourceTitle: c.SourceTitle,
			SourceType:  string(c.SourceType),
			Score:       c.Score,
		}
	}

	api.Success(w, http.StatusOK, ChatResponse{
		ConversationID: out.ConversationID,
		Answer:         out.ResponseText,
		Intent:         string(out.Intent),
		State:          string(out.State),
		CitedSources:   cited,
	})
}

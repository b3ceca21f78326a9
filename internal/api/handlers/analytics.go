package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/replyforge/replyforge/internal/api"
	"github.com/replyforge/replyforge/internal/api/middleware"
	"github.com/replyforge/replyforge/internal/service"
)

type AnalyticsReader interface {
	GetStats(ctx context.Context, tenantID string, since time.Time) (*service.AnswerStats, error)
	ListAnswers(ctx context.Context, input service.ListAnswersInput) (*service.ListAnswersOutput, error)
}

type AnalyticsHandler struct {
	svc AnalyticsReader
}

func NewAnalyticsHandler(svc AnalyticsReader) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

type StatsResponse struct {
	Total         int64   `json:"total"`
	Delivered     int64   `json:"delivered"`
	Failed        int64   `json:"failed"`
	Escalated     int64   `json:"escalated"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

type AnswerLogResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Intent         string `json:"intent"`
	State          string `json:"state"`
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	CandidateCount int    `json:"candidate_count"`
	DurationMS     int64  `json:"duration_ms"`
	CreatedAt      string `json:"created_at"`
}

type AnswerLogListResponse struct {
	Items   []*AnswerLogResponse `json:"items"`
	Cursor  string               `json:"cursor,omitempty"`
	HasMore bool                 `json:"has_more"`
}

// Stats reports aggregate answer counts. An optional "since" query
// parameter (RFC 3339) narrows the window; the default is 30 days.
func (h *AnalyticsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		since = parsed
	}

	stats, err := h.svc.GetStats(r.Context(), tenantID, since)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, StatsResponse{
		Total:         stats.Total,
		Delivered:     stats.Delivered,
		Failed:        stats.Failed,
		Escalated:     stats.Escalated,
		AvgDurationMS: stats.AvgDurationMS,
	})
}

func (h *AnalyticsHandler) ListAnswers(w http.ResponseWriter, r *http.Request) {
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

	output, err := h.svc.ListAnswers(r.Context(), service.ListAnswersInput{
		TenantID: tenantID,
		Cursor:   cursor,
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*AnswerLogResponse, len(output.Items))
	for i, l := range output.Items {
		responses[i] = &AnswerLogResponse{
			ID:             l.ID,
			ConversationID: l.ConversationID,
			Intent:         string(l.Intent),
			State:          string(l.State),
			Question:       l.Question,
			Answer:         l.Answer,
			CandidateCount: l.CandidateCount,
			DurationMS:     l.DurationMS,
			CreatedAt:      l.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	api.Success(w, http.StatusOK, AnswerLogListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

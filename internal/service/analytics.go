package service

import (
	"context"
	"time"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/pagination"
	"github.com/replyforge/replyforge/internal/telemetry"
)

// defaultStatsWindow is used when the caller gives no time range
const defaultStatsWindow = 30 * 24 * time.Hour

// AnalyticsService reports on answered messages per tenant
type AnalyticsService struct {
	answerLogRepo AnswerLogStore
}

func NewAnalyticsService(answerLogRepo AnswerLogStore) *AnalyticsService {
	return &AnalyticsService{answerLogRepo: answerLogRepo}
}

// GetStats aggregates answer outcomes since the given time.
// A zero since defaults to the last 30 days.
func (s *AnalyticsService) GetStats(ctx context.Context, tenantID string, since time.Time) (*AnswerStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnalyticsService.GetStats", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "stats",
	})
	defer span.End()

	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}

	if since.IsZero() {
		since = time.Now().UTC().Add(-defaultStatsWindow)
	}

	return s.answerLogRepo.StatsByTenant(ctx, tenantID, since)
}

type ListAnswersInput struct {
	TenantID string
	Cursor   string
	Limit    int
}

type ListAnswersOutput struct {
	Items   []*domain.AnswerLog
	Cursor  string
	HasMore bool
}

func (s *AnalyticsService) ListAnswers(ctx context.Context, input ListAnswersInput) (*ListAnswersOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnalyticsService.ListAnswers", telemetry.SpanAttributes{
		TenantID:  input.TenantID,
		Operation: "list",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.answerLogRepo.ListByTenant(ctx, input.TenantID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListAnswersOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

package service

import (
	"context"
	"log"
	"time"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/rag"
	"github.com/replyforge/replyforge/internal/telemetry"
)

// EscalationMessage is sent when a conversation is handed to a human
const EscalationMessage = "I've passed your request on to our support team. A human agent will get back to you shortly."

// SchedulingMessage is sent for appointment requests, which are not automated
const SchedulingMessage = "I can't book appointments myself yet. Please share a few times that work for you and our team will confirm one."

// AnswerPipeline runs one message through retrieval and generation
type AnswerPipeline interface {
	Answer(ctx context.Context, req *rag.Request) *rag.Result
}

// IntentDecider assigns an intent to an inbound message
type IntentDecider interface {
	Classify(ctx context.Context, message string) domain.Intent
}

// AnswerOutput is the result of answering one user message
type AnswerOutput struct {
	ConversationID string
	ResponseText   string
	CitedSources   []rag.Candidate
	Intent         domain.Intent
	State          domain.AnswerState
}

// AnswerService orchestrates a full answer turn: it resolves the tenant
// and conversation, classifies the message, dispatches per intent and
// records both sides of the exchange in the conversation log.
type AnswerService struct {
	tenantRepo    TenantStore
	conversations *ConversationService
	pipeline      AnswerPipeline
	classifier    IntentDecider
	answerLogRepo AnswerLogStore
	uuidGen       UUIDGenerator
}

func NewAnswerService(
	tenantRepo TenantStore,
	conversations *ConversationService,
	pipeline AnswerPipeline,
	classifier IntentDecider,
	answerLogRepo AnswerLogStore,
) *AnswerService {
	return &AnswerService{
		tenantRepo:    tenantRepo,
		conversations: conversations,
		pipeline:      pipeline,
		classifier:    classifier,
		answerLogRepo: answerLogRepo,
		uuidGen:       &DefaultUUIDGenerator{},
	}
}

func NewAnswerServiceWithUUIDGen(
	tenantRepo TenantStore,
	conversations *ConversationService,
	pipeline AnswerPipeline,
	classifier IntentDecider,
	answerLogRepo AnswerLogStore,
	uuidGen UUIDGenerator,
) *AnswerService {
	return &AnswerService{
		tenantRepo:    tenantRepo,
		conversations: conversations,
		pipeline:      pipeline,
		classifier:    classifier,
		answerLogRepo: answerLogRepo,
		uuidGen:       uuidGen,
	}
}

// AnswerQuery answers one user message within a conversation. An empty
// conversationID starts a new conversation; the returned output carries
// the ID to continue it.
func (s *AnswerService) AnswerQuery(ctx context.Context, tenantID, conversationID, userMessage string) (*AnswerOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnswerService.AnswerQuery", telemetry.SpanAttributes{
		TenantID:       tenantID,
		ConversationID: conversationID,
		Operation:      "answer",
	})
	defer span.End()

	start := time.Now()

	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	if userMessage == "" {
		return nil, domain.ErrEmptyUserMessage
	}

	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	conv, err := s.conversations.GetOrCreate(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	history, err := s.conversations.History(ctx, tenantID, conv.ID)
	if err != nil {
		// A lost history degrades the answer but should not block it
		log.Printf("answer: failed to load history conversation=%s: %v", conv.ID, err)
		history = nil
	}

	if _, err := s.conversations.Append(ctx, tenantID, conv.ID, domain.MessageRoleUser, userMessage); err != nil {
		return nil, err
	}

	intent := s.classifier.Classify(ctx, userMessage)

	var out *AnswerOutput
	switch intent {
	case domain.IntentEscalation:
		out, err = s.answerEscalation(ctx, tenantID, conv.ID, userMessage)
	case domain.IntentScheduling:
		out = &AnswerOutput{
			ResponseText: SchedulingMessage,
			State:        domain.AnswerStateDelivered,
		}
	case domain.IntentFAQ:
		out = s.answerFromKnowledge(ctx, tenant, conv.ID, userMessage, history, rag.SearchFilter{
			SourceTypes: []domain.SourceType{domain.SourceTypeFAQ, domain.SourceTypeDocument},
		})
	default:
		out = s.answerFromKnowledge(ctx, tenant, conv.ID, userMessage, history, rag.SearchFilter{})
	}
	if err != nil {
		return nil, err
	}

	out.ConversationID = conv.ID
	out.Intent = intent

	if _, err := s.conversations.Append(ctx, tenantID, conv.ID, domain.MessageRoleAssistant, out.ResponseText); err != nil {
		log.Printf("answer: failed to record assistant message conversation=%s: %v", conv.ID, err)
	}

	s.recordAnswer(ctx, tenantID, conv.ID, intent, out, userMessage, time.Since(start))

	return out, nil
}

func (s *AnswerService) answerFromKnowledge(ctx context.Context, tenant *domain.Tenant, conversationID, userMessage string, history []*domain.Message, filter rag.SearchFilter) *AnswerOutput {
	msgs := make([]domain.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, *m)
	}

	result := s.pipeline.Answer(ctx, &rag.Request{
		TenantID:       tenant.ID,
		ConversationID: conversationID,
		UserMessage:    userMessage,
		History:        msgs,
		SystemPrompt:   tenant.Settings.SystemPrompt,
		Settings: rag.GenerationSettings{
			Model:       tenant.Settings.ModelName,
			Temperature: tenant.Settings.Temperature,
			MaxTokens:   tenant.Settings.MaxTokens,
		},
		Filter: filter,
	})

	return &AnswerOutput{
		ResponseText: result.Text,
		CitedSources: result.CitedSources,
		State:        result.State,
	}
}

func (s *AnswerService) answerEscalation(ctx context.Context, tenantID, conversationID, userMessage string) (*AnswerOutput, error) {
	if _, err := s.conversations.OpenEscalation(ctx, tenantID, conversationID, userMessage); err != nil {
		return nil, err
	}

	return &AnswerOutput{
		ResponseText: EscalationMessage,
		State:        domain.AnswerStateDelivered,
	}, nil
}

// recordAnswer is best effort, a failed analytics write never fails the turn
func (s *AnswerService) recordAnswer(ctx context.Context, tenantID, conversationID string, intent domain.Intent, out *AnswerOutput, question string, elapsed time.Duration) {
	logEntry := &domain.AnswerLog{
		ID:             s.uuidGen.NewString(),
		TenantID:       tenantID,
		ConversationID: conversationID,
		Intent:         intent,
		State:          out.State,
		Question:       question,
		Answer:         out.ResponseText,
		CandidateCount: len(out.CitedSources),
		DurationMS:     elapsed.Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.answerLogRepo.Create(ctx, logEntry); err != nil {
		log.Printf("answer: failed to record answer log conversation=%s: %v", conversationID, err)
	}
}

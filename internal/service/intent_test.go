package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/llm"
)

type stubCompleter struct {
	response string
	err      error
	lastReq  llm.ChatRequest
}

func (s *stubCompleter) Complete(ctx context.Context, req llm.ChatRequest) (string, error) {
	s.lastReq = req
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestIntentClassifier_Classify(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     domain.Intent
	}{
		{"knowledge", "knowledge", domain.IntentKnowledge},
		{"faq", "faq", domain.IntentFAQ},
		{"escalation", "escalation", domain.IntentEscalation},
		{"scheduling", "scheduling", domain.IntentScheduling},
		{"uppercase label", "Escalation", domain.IntentEscalation},
		{"trailing period", "faq.", domain.IntentFAQ},
		{"surrounding whitespace", "  scheduling\n", domain.IntentScheduling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewIntentClassifier(&stubCompleter{response: tt.response}, "gpt-4o-mini")
			got := c.Classify(context.Background(), "some message")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntentClassifier_SendsMessageToModel(t *testing.T) {
	completer := &stubCompleter{response: "knowledge"}
	c := NewIntentClassifier(completer, "gpt-4o-mini")

	c.Classify(context.Background(), "where is my order?")

	assert.Equal(t, "where is my order?", completer.lastReq.User)
	assert.Equal(t, "gpt-4o-mini", completer.lastReq.Model)
	assert.Equal(t, float32(0), completer.lastReq.Temperature)
}

func TestIntentClassifier_KeywordFallbackOnError(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    domain.Intent
	}{
		{"human request", "I want to speak to a human right now", domain.IntentEscalation},
		{"refund complaint", "this is broken, I want a refund", domain.IntentEscalation},
		{"appointment", "can I schedule an appointment for Tuesday", domain.IntentScheduling},
		{"plain question", "how do I export my data", domain.IntentKnowledge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewIntentClassifier(&stubCompleter{err: errors.New("model down")}, "gpt-4o-mini")
			got := c.Classify(context.Background(), tt.message)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntentClassifier_UnrecognizedLabelFallsBack(t *testing.T) {
	c := NewIntentClassifier(&stubCompleter{response: "banana"}, "gpt-4o-mini")

	got := c.Classify(context.Background(), "please get me an agent")

	assert.Equal(t, domain.IntentEscalation, got)
}

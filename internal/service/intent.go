package service

import (
	"context"
	"log"
	"strings"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/llm"
	"github.com/replyforge/replyforge/internal/rag"
)

const intentSystemPrompt = `You classify customer support messages into exactly one intent.
Intents:
- knowledge: a question answerable from the company's documentation
- faq: a short common question such as pricing, password reset or opening hours
- escalation: the customer is angry, reports a serious problem or asks for a human
- scheduling: the customer wants to book, move or cancel an appointment or call
Respond with the intent name only, lowercase, no punctuation.`

// escalationKeywords trigger the keyword fallback when the model is unavailable
var escalationKeywords = []string{
	"speak to a human", "talk to a human", "real person", "agent", "complaint",
	"refund", "cancel my account", "unacceptable", "furious", "lawyer",
}

var schedulingKeywords = []string{
	"appointment", "schedule", "reschedule", "book a", "booking", "meeting", "demo call",
}

// IntentClassifier decides which answer flow a user message takes.
// Classification fails open: any model error falls back to keyword
// matching so a message is never dropped for lack of an intent.
type IntentClassifier struct {
	completer rag.Completer
	model     string
}

func NewIntentClassifier(completer rag.Completer, model string) *IntentClassifier {
	return &IntentClassifier{completer: completer, model: model}
}

func (c *IntentClassifier) Classify(ctx context.Context, message string) domain.Intent {
	resp, err := c.completer.Complete(ctx, llm.ChatRequest{
		Model:       c.model,
		System:      intentSystemPrompt,
		User:        message,
		Temperature: 0,
		MaxTokens:   8,
	})
	if err != nil {
		log.Printf("intent: classification failed, using keyword fallback: %v", err)
		return classifyByKeywords(message)
	}

	intent, ok := parseIntent(resp)
	if !ok {
		log.Printf("intent: unrecognized label %q, using keyword fallback", resp)
		return classifyByKeywords(message)
	}
	return intent
}

func parseIntent(raw string) (domain.Intent, bool) {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Trim(label, `."'`)

	switch domain.Intent(label) {
	case domain.IntentKnowledge, domain.IntentFAQ, domain.IntentEscalation, domain.IntentScheduling:
		return domain.Intent(label), true
	}
	return "", false
}

func classifyByKeywords(message string) domain.Intent {
	lower := strings.ToLower(message)

	for _, kw := range escalationKeywords {
		if strings.Contains(lower, kw) {
			return domain.IntentEscalation
		}
	}
	for _, kw := range schedulingKeywords {
		if strings.Contains(lower, kw) {
			return domain.IntentScheduling
		}
	}
	return domain.IntentKnowledge
}

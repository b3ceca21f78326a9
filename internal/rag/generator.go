package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/llm"
)

// FallbackMessage is returned to the end user when the pipeline fails.
// Raw errors never reach the end user.
const FallbackMessage = "Sorry, something went wrong on our side. Please try again in a moment."

// PolicyApologyMessage is returned when the provider rejects a request
// on content policy grounds. Not retried.
const PolicyApologyMessage = "I'm sorry, but I can't help with that request."

const noContextInstruction = "No relevant information was found in the " +
	"knowledge base for this question. Tell the customer you do not " +
	"have that information and offer to connect them with a human agent."

// GenerationSettings carries the per-tenant model configuration for one call
type GenerationSettings struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Generator produces the final reply from formatted context and
// conversation history.
type Generator struct {
	completer  Completer
	retryDelay time.Duration
}

// NewGenerator creates an answer generator
func NewGenerator(completer Completer) *Generator {
	return &Generator{
		completer:  completer,
		retryDelay: time.Second,
	}
}

// Generate makes one chat completion call, retrying once on a transient
// provider failure. Content policy rejections return the apology
// message immediately. Any other failure is returned as an error for
// the caller to map onto the fallback text.
func (g *Generator) Generate(
	ctx context.Context,
	systemPrompt, formattedContext string,
	history []domain.Message,
	userMessage string,
	settings GenerationSettings,
) (string, error) {
	req := llm.ChatRequest{
		Model:       settings.Model,
		System:      buildSystemPrompt(systemPrompt, formattedContext),
		History:     history,
		User:        userMessage,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	}

	answer, err := g.completer.Complete(ctx, req)
	if err == nil {
		return answer, nil
	}

	var de *domain.DomainError
	if errors.As(err, &de) && de.Code == domain.ErrCodeContentPolicy {
		return PolicyApologyMessage, nil
	}

	if !domain.IsTransient(err) && !isUpstream(err) {
		return "", err
	}

	log.Printf("generation failed, retrying once: %v", err)
	select {
	case <-time.After(g.retryDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	answer, err = g.completer.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generation retry failed: %w", err)
	}
	return answer, nil
}

// buildSystemPrompt appends the retrieved context to the tenant's
// system prompt, or the no-information instruction when retrieval
// produced nothing
func buildSystemPrompt(systemPrompt, formattedContext string) string {
	if formattedContext == "" {
		return systemPrompt + "\n\n" + noContextInstruction
	}
	return systemPrompt + "\n\nUse the following context to answer:\n\n" + formattedContext
}

func isUpstream(err error) bool {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Code == domain.ErrCodeUpstream
	}
	return false
}

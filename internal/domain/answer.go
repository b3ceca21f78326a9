package domain

import (
	"fmt"
	"time"
)

// AnswerState tracks the progress of one inbound message through the
// answer pipeline. Failed is terminal and reachable from every
// non-terminal state once retries are exhausted.
type AnswerState string

const (
	AnswerStateReceived   AnswerState = "received"
	AnswerStateExpanding  AnswerState = "expanding"
	AnswerStateRetrieving AnswerState = "retrieving"
	AnswerStateReranking  AnswerState = "reranking"
	AnswerStateFormatting AnswerState = "formatting"
	AnswerStateGenerating AnswerState = "generating"
	AnswerStateDelivered  AnswerState = "delivered"
	AnswerStateFailed     AnswerState = "failed"
)

// answerStateOrder fixes the forward sequence of pipeline states
var answerStateOrder = map[AnswerState]int{
	AnswerStateReceived:   0,
	AnswerStateExpanding:  1,
	AnswerStateRetrieving: 2,
	AnswerStateReranking:  3,
	AnswerStateFormatting: 4,
	AnswerStateGenerating: 5,
	AnswerStateDelivered:  6,
}

// CanTransition reports whether moving from one answer state to the
// next is legal. Forward moves advance one step at a time, and any
// non-terminal state may fail.
func CanTransition(from, to AnswerState) bool {
	if from == AnswerStateDelivered || from == AnswerStateFailed {
		return false
	}
	if to == AnswerStateFailed {
		return true
	}
	fo, ok := answerStateOrder[from]
	if !ok {
		return false
	}
	t, ok := answerStateOrder[to]
	if !ok {
		return false
	}
	return t == fo+1
}

// AnswerLog records the outcome of one answered message for analytics
type AnswerLog struct {
	ID             string
	TenantID       string
	ConversationID string
	Intent         Intent
	State          AnswerState
	Question       string
	Answer         string
	CandidateCount int
	DurationMS     int64
	CreatedAt      time.Time
}

// ValidateAnswerLog validates an AnswerLog instance
func ValidateAnswerLog(l *AnswerLog) error {
	if l == nil {
		return fmt.Errorf("answer log cannot be nil")
	}

	if l.ID == "" {
		return fmt.Errorf("answer log ID is required")
	}

	if l.TenantID == "" {
		return fmt.Errorf("answer log TenantID is required")
	}

	if l.ConversationID == "" {
		return fmt.Errorf("answer log ConversationID is required")
	}

	if l.State != AnswerStateDelivered && l.State != AnswerStateFailed {
		return fmt.Errorf("answer log State must be terminal, got: %s", l.State)
	}

	return nil
}

package domain

// Intent is the routing decision made for an inbound user message
type Intent string

const (
	IntentKnowledge  Intent = "knowledge"
	IntentFAQ        Intent = "faq"
	IntentEscalation Intent = "escalation"
	IntentScheduling Intent = "scheduling"
)

// isValidIntent checks if an Intent is valid
func isValidIntent(i Intent) bool {
	switch i {
	case IntentKnowledge, IntentFAQ, IntentEscalation, IntentScheduling:
		return true
	}
	return false
}

// NormalizeIntent maps an arbitrary classifier label onto a known
// Intent, falling back to knowledge retrieval for anything unexpected.
func NormalizeIntent(label string) Intent {
	i := Intent(label)
	if isValidIntent(i) {
		return i
	}
	return IntentKnowledge
}

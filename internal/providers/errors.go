package providers

import "strings"

// ErrorType buckets a backend failure for reporting and retry decisions.
// Embedding batch reports carry it so a run summary can distinguish an
// exhausted quota from a transient outage.
type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
)

// ClassifyError maps a provider error onto an ErrorType by message
// inspection. The HTTP backends (OpenAI, Groq, Ollama) do not expose
// structured error codes uniformly, so string matching is the common
// denominator. Unknown errors classify as permanent.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient_quota"), strings.Contains(msg, "quota"), strings.Contains(msg, "credit"):
		return ErrorQuota
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate"):
		return ErrorRate
	case strings.Contains(msg, "too long"), strings.Contains(msg, "context"):
		return ErrorContext
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "temporarily"), strings.Contains(msg, "unavailable"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

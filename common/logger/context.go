package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Fields flow through context enrichment, enabling zero-touch
// logging where business context (discussion_id, round_id, etc.) is
// automatically included in all log statements.
type LogFields struct {
	DiscussionID *int64  // Discussion being mutated
	RoundID      *int64  // Current round
	RoundNumber  *int    // Round sequence number
	UserID       *int64  // Acting user
	EventType    *string // Engine event type (e.g., "response_accepted")
	Component    string  // Component name (OTel semantic convention style, e.g., "rounds.scheduler")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.DiscussionID != nil {
		result.DiscussionID = new.DiscussionID
	}
	if new.RoundID != nil {
		result.RoundID = new.RoundID
	}
	if new.RoundNumber != nil {
		result.RoundNumber = new.RoundNumber
	}
	if new.UserID != nil {
		result.UserID = new.UserID
	}
	if new.EventType != nil {
		result.EventType = new.EventType
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

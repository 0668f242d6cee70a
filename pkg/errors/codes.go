package errors

// Common error codes.
const (
	ErrInternal        = "INTERNAL"
	ErrNotFound        = "NOT_FOUND"
	ErrInvalidArgument = "INVALID_ARGUMENT"
	ErrConflict        = "CONFLICT"
	ErrTimeout         = "TIMEOUT"
	ErrNotImplemented  = "NOT_IMPLEMENTED"
)

// Pipeline error codes. One per stage, plus the lifecycle errors raised by
// the task state machine and configuration loading.
const (
	ErrRouting           = "ROUTING"
	ErrClarification     = "CLARIFICATION"
	ErrResearch          = "RESEARCH"
	ErrWriter            = "WRITER"
	ErrFactCheck         = "FACT_CHECK"
	ErrBackgroundTimeout = "BACKGROUND_TIMEOUT"
	ErrInvalidTransition = "INVALID_TRANSITION"
	ErrConfiguration     = "CONFIGURATION"
)

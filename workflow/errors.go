package workflow

import "fmt"

// ErrorKind classifies a stage failure for retry and reporting decisions.
type ErrorKind string

const (
	// ErrProviderTimeout indicates an external call exceeded its deadline.
	ErrProviderTimeout ErrorKind = "PROVIDER_TIMEOUT"
	// ErrProviderRejected indicates an external call returned an explicit error.
	ErrProviderRejected ErrorKind = "PROVIDER_REJECTED"
	// ErrMalformedOutput indicates a stage could not parse a provider response
	// into its required fields.
	ErrMalformedOutput ErrorKind = "MALFORMED_OUTPUT"
	// ErrCancelled indicates the caller cancelled the run.
	ErrCancelled ErrorKind = "CANCELLED"
	// ErrConfiguration is only ever produced by the executor when graph or
	// policy validation fails before a run starts; stages never return it.
	ErrConfiguration ErrorKind = "CONFIGURATION_ERROR"
)

// StageError is the typed failure a stage reports to the executor. It is
// always recoverable at the executor level: the executor decides whether to
// retry, and surfaces the last error verbatim when retries are exhausted.
type StageError struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Cause   error
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] stage %s: %s: %v", e.Kind, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] stage %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *StageError) Unwrap() error { return e.Cause }

// Retryable reports whether the executor may re-attempt the stage.
// Cancellation is never retried; malformed output is only retried when the
// stage's retry policy opts in, since a deterministic parse failure rarely
// changes on an identical input.
func (e *StageError) Retryable() bool {
	switch e.Kind {
	case ErrProviderTimeout, ErrProviderRejected:
		return true
	default:
		return false
	}
}

// NewStageError creates a StageError with the given kind and message.
func NewStageError(kind ErrorKind, stage, message string) *StageError {
	return &StageError{Kind: kind, Stage: stage, Message: message}
}

// WithCause attaches the underlying error and returns the receiver.
func (e *StageError) WithCause(cause error) *StageError {
	e.Cause = cause
	return e
}

// ConfigError reports an invalid graph or run configuration. It is detected
// at graph construction time and prevents a run from starting; it is never a
// runtime StageError.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("workflow configuration error: %s", e.Message)
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

package orchestrator

import "fmt"

// Failure kinds, used by the HTTP layer to pick a status code.
const (
	KindUnsupported      = "unsupported_file_type"
	KindInsufficientText = "insufficient_text"
	KindProviderFailed   = "provider_failed"
	KindInvalidOutput    = "invalid_output"
	KindInternal         = "internal"
)

// PipelineError is a classified processing failure.
type PipelineError struct {
	Kind string
	Msg  string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func failf(kind, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrap(kind, msg string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Msg: msg, Err: err}
}

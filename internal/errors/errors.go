package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a pipeline failure by the phase contract it broke.
type Kind string

const (
	KindResolution Kind = "resolution"
	KindParse      Kind = "parse"
	KindPublish    Kind = "publish"
	KindConfig     Kind = "config"
	KindIO         Kind = "io"
	KindTracking   Kind = "tracking"
)

// PipelineError is the single error type surfaced by the cleaning step.
// Every failure is fatal; nothing carrying this type is retried.
type PipelineError struct {
	Kind    Kind                   `json:"kind"`
	Phase   string                 `json:"phase,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Phase != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Phase, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// WithContext attaches a key/value pair for structured logging.
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogAttrs flattens the error into slog-compatible key/value pairs.
func (e *PipelineError) LogAttrs() []any {
	attrs := []any{"error_kind", string(e.Kind)}
	if e.Phase != "" {
		attrs = append(attrs, "phase", e.Phase)
	}
	for k, v := range e.Context {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// New creates a pipeline error of the given kind.
func New(kind Kind, phase, message string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Phase:   phase,
		Message: message,
		Cause:   cause,
	}
}

// NewResolutionError reports that an artifact reference could not be fetched.
func NewResolutionError(ref string, cause error) *PipelineError {
	return New(KindResolution, "download", fmt.Sprintf("cannot resolve artifact %q", ref), cause).
		WithContext("artifact_ref", ref)
}

// NewParseError reports input that is not valid tabular data.
func NewParseError(path, message string, cause error) *PipelineError {
	return New(KindParse, "load", message, cause).WithContext("path", path)
}

// NewPublishError reports a failed artifact upload or registration.
func NewPublishError(name string, cause error) *PipelineError {
	return New(KindPublish, "publish", fmt.Sprintf("cannot publish artifact %q", name), cause).
		WithContext("artifact_name", name)
}

// NewConfigError reports invalid configuration or parameters.
func NewConfigError(message string, cause error) *PipelineError {
	return New(KindConfig, "", message, cause)
}

// NewIOError reports a local filesystem failure during a phase.
func NewIOError(phase, message string, cause error) *PipelineError {
	return New(KindIO, phase, message, cause)
}

// NewTrackingError reports a failure talking to the run tracker.
func NewTrackingError(message string, cause error) *PipelineError {
	return New(KindTracking, "", message, cause)
}

// KindOf returns the kind of the first PipelineError in err's chain, or ""
// when there is none.
func KindOf(err error) Kind {
	var pErr *PipelineError
	if stderrors.As(err, &pErr) {
		return pErr.Kind
	}
	return ""
}

// IsResolution reports whether err is a resolution failure.
func IsResolution(err error) bool { return KindOf(err) == KindResolution }

// IsParse reports whether err is a parse failure.
func IsParse(err error) bool { return KindOf(err) == KindParse }

// IsPublish reports whether err is a publish failure.
func IsPublish(err error) bool { return KindOf(err) == KindPublish }

// IsConfig reports whether err is a configuration failure.
func IsConfig(err error) bool { return KindOf(err) == KindConfig }

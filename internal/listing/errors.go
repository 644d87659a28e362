package listing

import (
	"fmt"

	"server/internal/domain"
	"server/internal/listing/schema"
)

// FailureKind classifies pipeline failures for the caller. The kind decides
// whether the input should be fixed, the call retried later, or the result
// treated as unobtainable.
type FailureKind string

const (
	FailInvalidInput     FailureKind = "invalid_input"
	FailModelUnavailable FailureKind = "model_unavailable"
	FailModelRefused     FailureKind = "model_refused"
	FailRateLimited      FailureKind = "rate_limited"
	FailMalformedOutput  FailureKind = "malformed_output"
	FailInvalidSchema    FailureKind = "invalid_schema"
	FailGenerationFailed FailureKind = "generation_failed"
)

// Stage names the pipeline state in which a failure occurred.
type Stage string

const (
	StageValidatingInput Stage = "validating_input"
	StageInvokingModel   Stage = "invoking_model"
	StageParsing         Stage = "parsing"
	StageCorrecting      Stage = "correcting"
)

// Failure is the single typed error the pipeline returns. Reason is safe to
// surface to callers; RawOutput and the wrapped cause are diagnostic only and
// must never reach API responses.
type Failure struct {
	Kind       FailureKind
	Stage      Stage
	Reason     string
	RawOutput  string
	Violations []schema.Violation
	Cause      error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", f.Kind, f.Stage, f.Reason, f.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", f.Kind, f.Stage, f.Reason)
}

// Unwrap maps the failure kind onto the domain sentinel so callers can branch
// with errors.Is, and chains to the underlying cause.
func (f *Failure) Unwrap() []error {
	errs := []error{sentinel(f.Kind)}
	if f.Cause != nil {
		errs = append(errs, f.Cause)
	}
	return errs
}

// Retryable reports whether a failure of this kind is eligible for the single
// auto-fix pass.
func (f *Failure) Retryable() bool {
	return f.Kind == FailMalformedOutput || f.Kind == FailInvalidSchema
}

func sentinel(kind FailureKind) error {
	switch kind {
	case FailInvalidInput:
		return domain.ErrInvalidInput
	case FailModelUnavailable:
		return domain.ErrModelUnavailable
	case FailModelRefused:
		return domain.ErrModelRefused
	case FailRateLimited:
		return domain.ErrRateLimited
	case FailMalformedOutput:
		return domain.ErrMalformedOutput
	case FailInvalidSchema:
		return domain.ErrInvalidSchema
	}
	return domain.ErrGenerationFailed
}

func invalidInput(reason string) *Failure {
	return &Failure{Kind: FailInvalidInput, Stage: StageValidatingInput, Reason: reason}
}

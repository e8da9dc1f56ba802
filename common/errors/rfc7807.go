// Package errors maps domain errors to RFC 7807 problem-details responses.
package errors

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/peerflow/p2pmatch/internal/matching/model"
)

// ProblemDetails represents an RFC 7807 compliant error response.
type ProblemDetails struct {
	// Type is a URI reference that identifies the problem type
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Status is the HTTP status code
	Status int `json:"status"`
	// Detail is a human-readable explanation of this occurrence
	Detail string `json:"detail"`
	// Instance identifies the specific occurrence of the problem
	Instance string `json:"instance,omitempty"`
	// Timestamp when the error occurred
	Timestamp time.Time `json:"timestamp"`
	// TraceID for request tracing
	TraceID string `json:"traceId,omitempty"`
	// Field names the offending field for validation/config errors
	Field string `json:"field,omitempty"`
}

// Problem type URIs and titles for the queue-matching domain.
const (
	TypeValidationError = "https://api.peerflow.io/errors/validation-error"
	TypeNotFound        = "https://api.peerflow.io/errors/not-found"
	TypeConflict        = "https://api.peerflow.io/errors/conflict"
	TypeConfigError     = "https://api.peerflow.io/errors/optimization-config"
	TypeInternalError   = "https://api.peerflow.io/errors/internal-error"

	TitleValidationError = "Validation Error"
	TitleNotFound        = "Not Found"
	TitleConflict        = "Conflict"
	TitleConfigError     = "Invalid Optimization Config"
	TitleInternalError   = "Internal Server Error"
)

// Error implements the error interface so ProblemDetails can travel
// through gin's error list.
func (p *ProblemDetails) Error() string {
	return p.Title + ": " + p.Detail
}

// WithTraceID attaches a trace id for request correlation.
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

// NewProblemDetails creates an RFC 7807 error.
func NewProblemDetails(problemType, title string, status int, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationProblem builds a 400 problem for malformed input.
func NewValidationProblem(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeValidationError, TitleValidationError, http.StatusBadRequest, detail, instance)
}

// NewNotFoundProblem builds a 404 problem for unknown item ids.
func NewNotFoundProblem(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeNotFound, TitleNotFound, http.StatusNotFound, detail, instance)
}

// NewConflictProblem builds a 409 problem for status conflicts.
func NewConflictProblem(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeConflict, TitleConflict, http.StatusConflict, detail, instance)
}

// NewConfigProblem builds a 422 problem for invalid optimization patches.
func NewConfigProblem(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeConfigError, TitleConfigError, http.StatusUnprocessableEntity, detail, instance)
}

// NewInternalProblem builds a 500 problem.
func NewInternalProblem(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeInternalError, TitleInternalError, http.StatusInternalServerError, detail, instance)
}

// FromError converts any error into problem details, recognizing the
// domain taxonomy. Unknown errors become 500s with a generic detail so
// internals never leak.
func FromError(err error, instance string) *ProblemDetails {
	var (
		pd     *ProblemDetails
		vErr   *model.ValidationError
		nfErr  *model.NotFoundError
		cErr   *model.ConflictError
		optErr *model.OptimizationConfigError
	)
	switch {
	case stderrors.As(err, &pd):
		return pd
	case stderrors.As(err, &vErr):
		p := NewValidationProblem(vErr.Error(), instance)
		p.Field = vErr.Field
		return p
	case stderrors.As(err, &nfErr):
		return NewNotFoundProblem(nfErr.Error(), instance)
	case stderrors.As(err, &cErr):
		return NewConflictProblem(cErr.Error(), instance)
	case stderrors.As(err, &optErr):
		p := NewConfigProblem(optErr.Error(), instance)
		p.Field = optErr.Field
		return p
	default:
		return NewInternalProblem("internal server error", instance)
	}
}

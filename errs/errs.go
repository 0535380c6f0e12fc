// Package errs provides structured error types and helpers for spawncache.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a pool-level error category.
type Code string

const (
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_argument"
	// CodeCategoryNotFound indicates the named category has not been created.
	CodeCategoryNotFound Code = "category_not_found"
	// CodeCategoryExists indicates an attempt to create a category twice.
	CodeCategoryExists Code = "category_already_exists"
	// CodeItemNotInUse indicates a return of an item without an active lease.
	CodeItemNotInUse Code = "item_not_in_use"
	// CodeUnavailable indicates the pool or a supporting worker is shutting
	// down or saturated and cannot service the request.
	CodeUnavailable Code = "unavailable"
	// CodeCloneFailed indicates the clone collaborator reported a failure.
	CodeCloneFailed Code = "clone_failed"
)

// E captures structured error information produced across the spawncache stack.
type E struct {
	Component string
	Code      Code
	Category  string
	Item      string
	Message   string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the component and error code.
func New(component string, code Code, opts ...Option) *E {
	e := &E{
		Component: strings.TrimSpace(component),
		Code:      code,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithCategory records the category name the failing operation targeted.
func WithCategory(name string) Option {
	trimmed := strings.TrimSpace(name)
	return func(e *E) {
		e.Category = trimmed
	}
}

// WithItem records the item id involved in the failure.
func WithItem(id string) Option {
	trimmed := strings.TrimSpace(id)
	return func(e *E) {
		e.Item = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	component := strings.TrimSpace(e.Component)
	if component == "" {
		component = "unknown"
	}
	parts = append(parts, "component="+component)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Category != "" {
		parts = append(parts, "category="+strconv.Quote(e.Category))
	}
	if e.Item != "" {
		parts = append(parts, "item="+e.Item)
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the error code from err, or an empty Code when err is not
// a spawncache envelope.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}

// IsCode reports whether err is an envelope carrying the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CategoryNotFound returns a standardized error for a missing category.
func CategoryNotFound(component, category string) *E {
	return New(component, CodeCategoryNotFound, WithCategory(category),
		WithMessage("category does not exist"))
}

// CategoryExists returns a standardized error for a duplicate category.
func CategoryExists(component, category string) *E {
	return New(component, CodeCategoryExists, WithCategory(category),
		WithMessage("category already registered"))
}

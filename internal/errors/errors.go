// Package errors provides a sum-type style error wrapper used across the
// engine: every failure mode is a variant built with a fluent
// Component/Category/Context builder rather than ad-hoc fmt.Errorf chains.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// Category groups errors for logging and metrics purposes.
type Category string

const (
	CategoryLifecycle  Category = "lifecycle"
	CategoryValidation Category = "validation"
	CategoryDSP        Category = "dsp"
	CategoryDenoiser   Category = "denoiser"
	CategoryChunk      Category = "chunk"
	CategoryFileFormat Category = "file-format"
	CategoryResampling Category = "resampling"
	CategoryState      Category = "state"
	CategoryResource   Category = "resource"
	CategoryNotFound   Category = "not-found"
	CategoryInternal   Category = "internal"
)

// ComponentUnknown is used when no component was set on the builder.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with component/category/context metadata.
type EnhancedError struct {
	Err       error
	component string
	Category  Category
	Context   map[string]any
	Timestamp time.Time

	mu sync.RWMutex
}

// Error implements the error interface.
func (ee *EnhancedError) Error() string {
	if ee.Err == nil {
		return fmt.Sprintf("%s: %s", ee.component, ee.Category)
	}
	return ee.Err.Error()
}

// Unwrap implements error unwrapping.
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is supports errors.Is comparisons. When target is an EnhancedError it
// matches on category and component, whatever either side wraps; otherwise
// it compares target against the wrapped cause.
func (ee *EnhancedError) Is(target error) bool {
	var other *EnhancedError
	if stderrors.As(target, &other) {
		return ee.Category == other.Category && ee.component == other.component
	}
	return stderrors.Is(ee.Err, target)
}

// Component returns the component that produced the error.
func (ee *EnhancedError) Component() string {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.component == "" {
		return ComponentUnknown
	}
	return ee.component
}

// GetContext returns a copy of the error's context map.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.Context == nil {
		return nil
	}
	out := make(map[string]any, len(ee.Context))
	maps.Copy(out, ee.Context)
	return out
}

// Builder accumulates metadata before producing an *EnhancedError.
type Builder struct {
	err *EnhancedError
}

// New starts a builder wrapping cause, which may be nil for a fresh error.
func New(cause error) *Builder {
	return &Builder{err: &EnhancedError{
		Err:       cause,
		Timestamp: time.Now(),
	}}
}

// Newf starts a builder with a formatted message and no wrapped cause.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the owning component (e.g. "engine", "chunkassembler").
func (b *Builder) Component(name string) *Builder {
	b.err.component = name
	return b
}

// Category sets the error category.
func (b *Builder) Category(c Category) *Builder {
	b.err.Category = c
	return b
}

// Context attaches a key/value pair of diagnostic context.
func (b *Builder) Context(key string, value any) *Builder {
	if b.err.Context == nil {
		b.err.Context = make(map[string]any, 4)
	}
	b.err.Context[key] = value
	return b
}

// Build finalizes the error.
func (b *Builder) Build() *EnhancedError {
	return b.err
}

// Join wraps the standard library's errors.Join so callers importing this
// package don't also need the stdlib import for the common aggregate case.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// Is delegates to the standard library errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As delegates to the standard library errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrTimeout     = errors.New("timeout")
	ErrRejected    = errors.New("rejected")

	// ErrCacheMiss is returned by cache stores when a key holds no value.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEvent is returned when an event is constructed with an unknown
	// type or a payload that does not belong to its family.
	ErrInvalidEvent = errors.New("invalid domain event")

	// ErrValidation marks caller input errors detected before any store access.
	ErrValidation = errors.New("validation failed")
)

// StoreErrorKind classifies failures of the system of record.
type StoreErrorKind int

const (
	StoreNotFound StoreErrorKind = iota + 1
	StoreConflict
	StoreUnavailable
)

func (k StoreErrorKind) String() string {
	switch k {
	case StoreNotFound:
		return "not_found"
	case StoreConflict:
		return "conflict"
	case StoreUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// StoreError is the only error that aborts a mutation. When it is returned the
// store transaction has been rolled back.
type StoreError struct {
	Kind   StoreErrorKind
	Entity EntityType
	ID     string
	Err    error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString("store ")
	b.WriteString(e.Kind.String())
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(string(e.Entity))
		if e.ID != "" {
			b.WriteString(" ")
			b.WriteString(e.ID)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == StoreNotFound
	case ErrConflict:
		return e.Kind == StoreConflict
	case ErrUnavailable:
		return e.Kind == StoreUnavailable
	}
	return false
}

// NewNotFound builds a StoreError{NotFound} for the given entity.
func NewNotFound(entity EntityType, id string) *StoreError {
	return &StoreError{Kind: StoreNotFound, Entity: entity, ID: id}
}

// NewConflict builds a StoreError{Conflict} carrying the cause.
func NewConflict(entity EntityType, id string, err error) *StoreError {
	return &StoreError{Kind: StoreConflict, Entity: entity, ID: id, Err: err}
}

// CacheErrorKind classifies cache backend failures.
type CacheErrorKind int

const (
	CacheUnavailable CacheErrorKind = iota + 1
	CacheTimeout
)

func (k CacheErrorKind) String() string {
	if k == CacheTimeout {
		return "timeout"
	}
	return "unavailable"
}

// CacheError is never surfaced to callers; it only degrades a MutationResult
// or turns a read into a store read.
type CacheError struct {
	Kind CacheErrorKind
	Op   string
	Key  string
	Err  error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s (%s %s): %v", e.Kind, e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

func (e *CacheError) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == CacheUnavailable
	case ErrTimeout:
		return e.Kind == CacheTimeout
	}
	return false
}

// PublishErrorKind classifies broker failures.
type PublishErrorKind int

const (
	PublishUnavailable PublishErrorKind = iota + 1
	PublishTimeout
	PublishRejected
)

func (k PublishErrorKind) String() string {
	switch k {
	case PublishUnavailable:
		return "unavailable"
	case PublishTimeout:
		return "timeout"
	case PublishRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// PublishError reports a publish that failed after the retry budget, or a
// non-retryable rejection.
type PublishError struct {
	Kind     PublishErrorKind
	EventID  string
	Attempts int
	Err      error
}

func (e *PublishError) Error() string {
	if e.EventID == "" {
		return fmt.Sprintf("publish %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("publish %s (event %s, %d attempts): %v", e.Kind, e.EventID, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == PublishUnavailable
	case ErrTimeout:
		return e.Kind == PublishTimeout
	case ErrRejected:
		return e.Kind == PublishRejected
	}
	return false
}

// Transient reports whether retrying the publish may succeed.
func (e *PublishError) Transient() bool {
	return e.Kind == PublishUnavailable || e.Kind == PublishTimeout
}

// ValidationError lists the caller input fields that were rejected.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + ": " + e.Fields[field]
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError with a single field message.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

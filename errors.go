package datalayer

import (
	"fmt"
)

// Error is a datalayer error.
type Error string

// Error satisfies the error interface.
func (err Error) Error() string {
	return string(err)
}

// Error types.
const (
	// ErrNotFound is matched (via errors.Is) by every NotFoundError.
	ErrNotFound Error = "not found"

	// ErrTimeout is the error returned when WaitForEvent's polling deadline
	// elapses before the event shows up in the dataLayer.
	ErrTimeout Error = "waiting for event failed: timeout"

	// ErrSerialization is matched (via errors.Is) by every
	// SerializationError.
	ErrSerialization Error = "serialization failed"

	// ErrInvalidVariable is the error returned when Get is called with an
	// empty variable name.
	ErrInvalidVariable Error = "invalid variable name"

	// ErrInvalidResult is the error returned when the page returned a value
	// that does not match what the in-page function is known to produce.
	ErrInvalidResult Error = "invalid result"
)

// Kinds of missing objects reported by NotFoundError.
const (
	KindContainer = "container"
	KindRegistry  = "google_tag_manager"
	KindDataLayer = "dataLayer"
)

// NotFoundError is the error returned when the page does not have the object
// an operation needs: the requested container, the GTM registry
// (window.google_tag_manager) or the dataLayer array.
type NotFoundError struct {
	Kind string
	ID   string
}

// Error satisfies the error interface.
func (e *NotFoundError) Error() string {
	switch e.Kind {
	case KindContainer:
		return fmt.Sprintf("container %s not found on the page", e.ID)
	case KindRegistry:
		return "no GTM container found on the page"
	case KindDataLayer:
		return "no dataLayer found on the page"
	}
	return fmt.Sprintf("%s not found", e.Kind)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SerializationError is the error returned when the dataLayer could not be
// converted to JSON for a reason other than the host objects that are
// replaced by the placeholder, for example a reference cycle.
type SerializationError struct {
	Message string
}

// Error satisfies the error interface.
func (e *SerializationError) Error() string {
	return "dataLayer serialization failed: " + e.Message
}

// Is reports whether target is ErrSerialization.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}

package datalayer

import (
	"go.opentelemetry.io/otel/trace"
)

// Option is a DataLayer option.
type Option func(*DataLayer)

// WithLogf is a DataLayer option to specify a func to receive general
// logging.
func WithLogf(f func(string, ...interface{})) Option {
	return func(dl *DataLayer) {
		dl.logf = f
	}
}

// WithDebugf is a DataLayer option to specify a func to receive a line for
// every round trip to the page.
func WithDebugf(f func(string, ...interface{})) Option {
	return func(dl *DataLayer) {
		dl.dbgf = f
	}
}

// WithErrorf is a DataLayer option to specify a func to receive error
// logging. It defaults to the WithLogf func, prefixed with "ERROR: ".
func WithErrorf(f func(string, ...interface{})) Option {
	return func(dl *DataLayer) {
		dl.errf = f
	}
}

// WithTracer is a DataLayer option to specify the tracer used to create a
// span for every round trip to the page.
func WithTracer(tracer trace.Tracer) Option {
	return func(dl *DataLayer) {
		dl.tracer = tracer
	}
}

// WithPlaceholder is a DataLayer option to specify the string host objects
// are replaced with when messages and variables are serialized. It defaults
// to DefaultPlaceholder.
func WithPlaceholder(placeholder string) Option {
	return func(dl *DataLayer) {
		dl.placeholder = placeholder
	}
}

// WithHostObjectFunc is a DataLayer option to specify the javascript
// predicate deciding which values are replaced with the placeholder, for
// example:
//
//	function(v) { return v instanceof Node || v instanceof Window; }
//
// It defaults to a predicate matching DOM nodes (objects with a positive
// nodeType).
func WithHostObjectFunc(fn string) Option {
	return func(dl *DataLayer) {
		dl.isHostObject = fn
	}
}

// WithContainerPrefix is a DataLayer option to specify the prefix that keys
// of window.google_tag_manager must have to be reported by ContainerIDs. It
// defaults to DefaultContainerPrefix.
func WithContainerPrefix(prefix string) Option {
	return func(dl *DataLayer) {
		dl.prefix = prefix
	}
}

package datalayer

import (
	"context"
)

// Page is the page driver a DataLayer talks to.
//
// Implementations run the JavaScript function declarations handed to them in
// the page's main execution context. The datalayer package ships two: Tab,
// backed by a chromedp target, and jsvm.VM, an in-process JavaScript runtime.
type Page interface {
	// Evaluate calls the function declaration fn with args, each passed
	// JSON-encoded, waits for a returned promise to settle, and returns the
	// result JSON-encoded. It returns a nil slice when the function returned
	// undefined.
	//
	// An exception thrown in the page, or a rejected promise, is returned as
	// an error.
	Evaluate(ctx context.Context, fn string, args ...interface{}) ([]byte, error)

	// Poll calls the predicate function declaration fn with args until it
	// returns a truthy value, following p. It returns ErrTimeout when
	// p.Timeout elapses first.
	Poll(ctx context.Context, fn string, p Polling, args ...interface{}) error
}

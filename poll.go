package datalayer

import (
	"time"
)

// PollingMode is the way a Page re-evaluates a predicate.
type PollingMode string

// Polling modes.
const (
	// PollingRAF evaluates the predicate in every requestAnimationFrame
	// callback.
	PollingRAF PollingMode = "raf"

	// PollingMutation evaluates the predicate on every DOM mutation.
	PollingMutation PollingMode = "mutation"
)

// DefaultPollingTimeout is the default maximum time WaitForEvent waits.
const DefaultPollingTimeout = 30 * time.Second

// Polling holds the polling configuration handed to Page.Poll.
type Polling struct {
	// Mode is ignored when Interval is set.
	Mode PollingMode

	// Interval, when positive, makes the predicate run on a timer.
	Interval time.Duration

	// Timeout is the maximum time to wait; 0 disables it.
	Timeout time.Duration
}

func newPolling(opts ...WaitOption) Polling {
	p := Polling{
		Mode:    PollingRAF,
		Timeout: DefaultPollingTimeout,
	}
	for _, o := range opts {
		o(&p)
	}
	return p
}

// WaitOption is a WaitForEvent option.
type WaitOption = func(*Polling)

// WithPollingInterval makes the page poll the dataLayer with the specified
// interval.
func WithPollingInterval(interval time.Duration) WaitOption {
	return func(p *Polling) {
		p.Mode = ""
		p.Interval = interval
	}
}

// WithPollingMutation makes the page poll the dataLayer on every DOM
// mutation.
func WithPollingMutation() WaitOption {
	return func(p *Polling) {
		p.Mode = PollingMutation
		p.Interval = 0
	}
}

// WithPollingTimeout specifies the maximum time to wait for the event.
// It defaults to 30 seconds. Pass 0 to disable timeout.
func WithPollingTimeout(timeout time.Duration) WaitOption {
	return func(p *Polling) {
		p.Timeout = timeout
	}
}

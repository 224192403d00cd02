// Package jsvm provides a datalayer.Page backed by an in-process JavaScript
// runtime instead of a browser.
//
// A VM runs goja on an event loop, so timers and promises behave as they do
// in a page, and exposes window, a console wired to the WithLogf func, and a
// minimal document whose nodes carry a nodeType. It does not load or render
// HTML: scripts are loaded with Load. This makes it suitable for testing GTM
// tagging code and dataLayer tooling without starting a browser.
package jsvm

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/chromedp/datalayer"
)

// DefaultPollingInterval is the interval predicates are polled with when the
// polling configuration does not set one.
const DefaultPollingInterval = 10 * time.Millisecond

// ErrClosed is the error returned when the VM has been closed.
var ErrClosed = errors.New("jsvm: closed")

var (
	// documentJS installs a minimal document, see the package docs.
	//go:embed js/document.js
	documentJS string

	// settleJS is a javascript function that calls a function and reports
	// its settled result to one of two callbacks.
	//go:embed js/settle.js
	settleJS string
)

// VM is a JavaScript runtime that satisfies datalayer.Page.
type VM struct {
	loop     *eventloop.EventLoop
	closed   atomic.Bool
	done     chan struct{}
	interval time.Duration
	logf     func(string, ...interface{})

	// only accessed on the loop
	settle    goja.Callable
	parse     goja.Callable
	stringify goja.Callable
}

var _ datalayer.Page = (*VM)(nil)

// Option is a VM option.
type Option func(*VM)

// WithLogf is a VM option to specify a func to receive the output of the
// console object.
func WithLogf(f func(string, ...interface{})) Option {
	return func(vm *VM) {
		vm.logf = f
	}
}

// WithPollingInterval is a VM option to specify the interval predicates are
// polled with when the polling configuration does not set one. It defaults
// to DefaultPollingInterval.
func WithPollingInterval(interval time.Duration) Option {
	return func(vm *VM) {
		vm.interval = interval
	}
}

// New starts a VM. Close must be called to stop it.
func New(opts ...Option) (*VM, error) {
	vm := &VM{
		interval: DefaultPollingInterval,
		logf:     func(string, ...interface{}) {},
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(vm)
	}

	vm.loop = eventloop.NewEventLoop(eventloop.EnableConsole(false))
	vm.loop.Start()

	errc := make(chan error, 1)
	vm.loop.RunOnLoop(func(r *goja.Runtime) {
		errc <- vm.setup(r)
	})
	if err := <-errc; err != nil {
		vm.Close()
		return nil, err
	}
	return vm, nil
}

func (vm *VM) setup(r *goja.Runtime) error {
	g := r.GlobalObject()
	if err := g.Set("window", g); err != nil {
		return err
	}
	if err := g.Set("self", g); err != nil {
		return err
	}

	console := r.NewObject()
	for _, level := range []string{"debug", "error", "info", "log", "warn"} {
		level := level
		err := console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			vm.logf("console.%s: %s", level, strings.Join(parts, " "))
			return goja.Undefined()
		})
		if err != nil {
			return err
		}
	}
	if err := g.Set("console", console); err != nil {
		return err
	}

	if _, err := r.RunString(documentJS); err != nil {
		return err
	}

	var err error
	if vm.settle, err = callable(r.RunString(settleJS)); err != nil {
		return err
	}
	j := r.Get("JSON").ToObject(r)
	if vm.parse, err = callable(j.Get("parse"), nil); err != nil {
		return err
	}
	vm.stringify, err = callable(j.Get("stringify"), nil)
	return err
}

// Load runs the script src in the VM's global scope.
func (vm *VM) Load(ctx context.Context, src string) error {
	return vm.do(ctx, func(r *goja.Runtime) error {
		_, err := r.RunString(src)
		return exception(err)
	})
}

// Evaluate satisfies datalayer.Page.
//
// Results are JSON-encoded with the VM's own JSON.stringify. Exceptions are
// returned as *runtime.ExceptionDetails, like they are by a browser.
func (vm *VM) Evaluate(ctx context.Context, fn string, args ...interface{}) ([]byte, error) {
	encoded := make([]string, len(args))
	for i, arg := range args {
		buf, err := json.Marshal(arg)
		if err != nil {
			return nil, err
		}
		encoded[i] = string(buf)
	}

	done := make(chan evalResult, 1)
	report := func(res evalResult) {
		select {
		case done <- res:
		default:
		}
	}
	if err := vm.run(func(r *goja.Runtime) {
		vm.call(r, fn, encoded, report)
	}); err != nil {
		return nil, err
	}

	select {
	case res := <-done:
		return res.buf, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-vm.done:
		return nil, ErrClosed
	}
}

// Poll satisfies datalayer.Page.
//
// The predicate is evaluated on a timer for every polling mode: the interval
// of p when set, or the VM's polling interval.
func (vm *VM) Poll(ctx context.Context, fn string, p datalayer.Polling, args ...interface{}) error {
	interval := p.Interval
	if interval <= 0 {
		interval = vm.interval
	}
	var timeout <-chan time.Time
	if p.Timeout > 0 {
		t := time.NewTimer(p.Timeout)
		defer t.Stop()
		timeout = t.C
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	predicate := "function() { return !!(" + strings.TrimSpace(fn) + ").apply(this, arguments); }"
	for {
		buf, err := vm.Evaluate(ctx, predicate, args...)
		if err != nil {
			return err
		}
		if string(buf) == "true" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return datalayer.ErrTimeout
		case <-vm.done:
			return ErrClosed
		case <-ticker.C:
		}
	}
}

// Close stops the VM's event loop. Pending timers are discarded and calls
// in flight return ErrClosed.
func (vm *VM) Close() {
	if vm.closed.Swap(true) {
		return
	}
	close(vm.done)
	vm.loop.Stop()
}

type evalResult struct {
	buf []byte
	err error
}

// call runs on the loop. report receives exactly one result, possibly after
// call returned when fn returns a pending promise.
func (vm *VM) call(r *goja.Runtime, fn string, args []string, report func(evalResult)) {
	f, err := r.RunString("(" + strings.TrimSpace(fn) + ")")
	if err != nil {
		report(evalResult{err: exception(err)})
		return
	}
	argv := make([]interface{}, len(args))
	for i, arg := range args {
		v, err := vm.parse(goja.Undefined(), r.ToValue(arg))
		if err != nil {
			report(evalResult{err: exception(err)})
			return
		}
		argv[i] = v
	}

	resolved := func(call goja.FunctionCall) goja.Value {
		buf, err := vm.encode(call.Argument(0))
		report(evalResult{buf: buf, err: err})
		return goja.Undefined()
	}
	rejected := func(call goja.FunctionCall) goja.Value {
		report(evalResult{err: details(call.Argument(0))})
		return goja.Undefined()
	}
	if _, err := vm.settle(goja.Undefined(), f, r.NewArray(argv...), r.ToValue(resolved), r.ToValue(rejected)); err != nil {
		report(evalResult{err: exception(err)})
	}
}

// encode runs on the loop.
func (vm *VM) encode(v goja.Value) ([]byte, error) {
	if v == nil || goja.IsUndefined(v) {
		return nil, nil
	}
	s, err := vm.stringify(goja.Undefined(), v)
	if err != nil {
		return nil, exception(err)
	}
	if goja.IsUndefined(s) {
		// functions and symbols
		return nil, nil
	}
	return []byte(s.String()), nil
}

// do runs f on the loop and waits for it to return.
func (vm *VM) do(ctx context.Context, f func(*goja.Runtime) error) error {
	errc := make(chan error, 1)
	if err := vm.run(func(r *goja.Runtime) {
		errc <- f(r)
	}); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-vm.done:
		return ErrClosed
	}
}

func (vm *VM) run(f func(*goja.Runtime)) error {
	if vm.closed.Load() {
		return ErrClosed
	}
	vm.loop.RunOnLoop(f)
	return nil
}

func callable(v goja.Value, err error) (goja.Callable, error) {
	if err != nil {
		return nil, err
	}
	f, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("jsvm: not a function")
	}
	return f, nil
}

// exception converts errors thrown by the runtime to the exception type a
// browser reports.
func exception(err error) error {
	if err == nil {
		return nil
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return details(ex.Value())
	}
	return &runtime.ExceptionDetails{
		Text: "Uncaught " + err.Error(),
	}
}

func details(v goja.Value) *runtime.ExceptionDetails {
	text, desc := "undefined", "undefined"
	if v != nil {
		text = v.String()
		desc = text
		if o, ok := v.(*goja.Object); ok {
			if stack := o.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
				desc = stack.String()
			}
		}
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return &runtime.ExceptionDetails{
		Text: "Uncaught " + text,
		Exception: &runtime.RemoteObject{
			Type:        runtime.TypeObject,
			Description: desc,
		},
	}
}

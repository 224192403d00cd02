package jsvm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"

	"github.com/chromedp/datalayer"
)

func testVM(tb testing.TB, opts ...Option) *VM {
	tb.Helper()
	vm, err := New(append([]Option{WithLogf(tb.Logf)}, opts...)...)
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(vm.Close)
	return vm
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	vm := testVM(t)
	tests := []struct {
		name string
		fn   string
		args []interface{}
		want string
	}{
		{"Number", "function() { return 1 + 2; }", nil, "3"},
		{"String", "function(s) { return s + '!'; }", []interface{}{"hi"}, `"hi!"`},
		{"Object", "function(m) { return {n: m.n + 1, a: [m.n]}; }", []interface{}{map[string]int{"n": 1}}, `{"n":2,"a":[1]}`},
		{"Null", "function() { return null; }", nil, "null"},
		{"Undefined", "function() {}", nil, ""},
		{"Function", "function() { return function() {}; }", nil, ""},
		{"Arrow", "(a, b) => a * b", []interface{}{6, 7}, "42"},
		{"This", "function() { return this === window; }", nil, "true"},
		{"Promise", "function() { return Promise.resolve('done'); }", nil, `"done"`},
		{"Timer", "function() { return new Promise(function(r) { setTimeout(function() { r(5); }, 10); }); }", nil, "5"},
		{"Document", "function() { return [document.nodeType, document.body.nodeName, document.body.parentNode === document.documentElement]; }", nil, `[9,"BODY",true]`},
	}
	for _, test := range tests {
		buf, err := vm.Evaluate(context.Background(), test.fn, test.args...)
		if err != nil {
			t.Errorf("%s: %v", test.name, err)
			continue
		}
		if string(buf) != test.want {
			t.Errorf("%s: want %q, got %q", test.name, test.want, buf)
		}
		if test.want == "" && buf != nil {
			t.Errorf("%s: want nil buf, got %v", test.name, buf)
		}
	}
}

func TestEvaluateState(t *testing.T) {
	t.Parallel()

	vm := testVM(t)
	ctx := context.Background()
	if err := vm.Load(ctx, "var counter = 0;"); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		buf, err := vm.Evaluate(ctx, "function() { return ++window.counter; }")
		if err != nil {
			t.Fatal(err)
		}
		if want := fmt.Sprint(i); string(buf) != want {
			t.Errorf("want %s, got %s", want, buf)
		}
	}
}

func TestEvaluateException(t *testing.T) {
	t.Parallel()

	vm := testVM(t)
	tests := []struct {
		name string
		fn   string
		want string
	}{
		{"Throw", "function() { throw new Error('boom'); }", "boom"},
		{"ThrowValue", "function() { throw 'bare'; }", "bare"},
		{"Reference", "function() { return missing.x; }", "missing"},
		{"Reject", "function() { return Promise.reject(new TypeError('nope')); }", "nope"},
		{"Syntax", "function( {", "Uncaught"},
		{"Cycle", "function() { var a = {}; a.a = a; return a; }", "Uncaught"},
	}
	for _, test := range tests {
		_, err := vm.Evaluate(context.Background(), test.fn)
		var exp *runtime.ExceptionDetails
		if !errors.As(err, &exp) {
			t.Errorf("%s: want exception details, got %T %v", test.name, err, err)
			continue
		}
		if !strings.HasPrefix(exp.Text, "Uncaught") {
			t.Errorf("%s: want Uncaught prefix, got %q", test.name, exp.Text)
		}
		if !strings.Contains(exp.Error(), test.want) {
			t.Errorf("%s: want %q in %q", test.name, test.want, exp.Error())
		}
	}
}

func TestEvaluateContext(t *testing.T) {
	t.Parallel()

	vm := testVM(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := vm.Evaluate(ctx, "function() { return new Promise(function() {}); }")
	if err != context.DeadlineExceeded {
		t.Fatalf("want %v, got %v", context.DeadlineExceeded, err)
	}
}

func TestEvaluateArgs(t *testing.T) {
	t.Parallel()

	vm := testVM(t)
	if _, err := vm.Evaluate(context.Background(), "function(c) {}", make(chan int)); err == nil {
		t.Fatal("want marshal error")
	}
}

func TestPoll(t *testing.T) {
	t.Parallel()

	vm := testVM(t)
	ctx := context.Background()
	if err := vm.Load(ctx, "var ready = false; setTimeout(function() { ready = 'yes'; }, 30);"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		fn      string
		p       datalayer.Polling
		args    []interface{}
		wantErr error
	}{
		{"Ready", "function() { return window.ready; }", datalayer.Polling{Timeout: time.Second}, nil, nil},
		{"Args", "function(want) { return window.ready === want; }", datalayer.Polling{Timeout: time.Second, Interval: 5 * time.Millisecond}, []interface{}{"yes"}, nil},
		{"Timeout", "function() { return false; }", datalayer.Polling{Timeout: 30 * time.Millisecond}, nil, datalayer.ErrTimeout},
		{"Mutation", "function() { return 0; }", datalayer.Polling{Mode: datalayer.PollingMutation, Timeout: 30 * time.Millisecond}, nil, datalayer.ErrTimeout},
	}
	for _, test := range tests {
		if err := vm.Poll(ctx, test.fn, test.p, test.args...); err != test.wantErr {
			t.Errorf("%s: want %v, got %v", test.name, test.wantErr, err)
		}
	}
}

func TestPollException(t *testing.T) {
	t.Parallel()

	vm := testVM(t)
	err := vm.Poll(context.Background(), "function() { throw new Error('bad'); }", datalayer.Polling{Timeout: time.Second})
	var exp *runtime.ExceptionDetails
	if !errors.As(err, &exp) {
		t.Fatalf("want exception details, got %v", err)
	}
}

func TestPollContext(t *testing.T) {
	t.Parallel()

	vm := testVM(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := vm.Poll(ctx, "function() { return false; }", datalayer.Polling{})
	if err != context.DeadlineExceeded {
		t.Fatalf("want %v, got %v", context.DeadlineExceeded, err)
	}
}

func TestConsole(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var lines []string
	vm := testVM(t, WithLogf(func(s string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(s, v...))
	}))
	if err := vm.Load(context.Background(), "console.log('a', 1); console.warn({}.x);"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"console.log: a 1", "console.warn: undefined"}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("want %q, got %q", want, lines)
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	vm := testVM(t)
	vm.Close()
	vm.Close()

	ctx := context.Background()
	if _, err := vm.Evaluate(ctx, "function() {}"); err != ErrClosed {
		t.Errorf("want %v, got %v", ErrClosed, err)
	}
	if err := vm.Load(ctx, "1"); err != ErrClosed {
		t.Errorf("want %v, got %v", ErrClosed, err)
	}
	if err := vm.Poll(ctx, "function() { return true; }", datalayer.Polling{}); err != ErrClosed {
		t.Errorf("want %v, got %v", ErrClosed, err)
	}
}

func TestCloseInFlight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		call func(*VM) error
	}{
		{"Evaluate", func(vm *VM) error {
			_, err := vm.Evaluate(context.Background(), "function() { return new Promise(function(r) { setTimeout(r, 100); }); }")
			return err
		}},
		{"Poll", func(vm *VM) error {
			return vm.Poll(context.Background(), "function() { return false; }", datalayer.Polling{})
		}},
	}
	for _, test := range tests {
		vm := testVM(t)
		errc := make(chan error, 1)
		go func() {
			errc <- test.call(vm)
		}()
		time.Sleep(20 * time.Millisecond)
		vm.Close()

		select {
		case err := <-errc:
			if err != ErrClosed {
				t.Errorf("%s: want %v, got %v", test.name, ErrClosed, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: still blocked after Close", test.name)
		}
	}
}

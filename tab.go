package datalayer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Tab returns a Page that runs against the chromedp target held by the
// context passed to each call, as created with chromedp.NewContext:
//
//	ctx, cancel := chromedp.NewContext(context.Background())
//	defer cancel()
//	if err := chromedp.Run(ctx, chromedp.Navigate(urlstr)); err != nil {
//		// ...
//	}
//	dl := datalayer.New(datalayer.Tab(), "GTM-XXXXXXX")
//	err := dl.WaitForEvent(ctx, "gtm.load")
//
// Exceptions thrown in the page are returned as *runtime.ExceptionDetails.
func Tab() Page {
	return tab{}
}

type tab struct{}

func (tab) Evaluate(ctx context.Context, fn string, args ...interface{}) ([]byte, error) {
	expr, err := callExpression(fn, args)
	if err != nil {
		return nil, err
	}
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &buf, evalAwaitPromise)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (tab) Poll(ctx context.Context, fn string, p Polling, args ...interface{}) error {
	opts := []chromedp.PollOption{
		chromedp.WithPollingTimeout(p.Timeout),
		chromedp.WithPollingArgs(args...),
	}
	switch {
	case p.Interval > 0:
		opts = append(opts, chromedp.WithPollingInterval(p.Interval))
	case p.Mode == PollingMutation:
		opts = append(opts, chromedp.WithPollingMutation())
	}
	err := chromedp.Run(ctx, chromedp.PollFunction(fn, nil, opts...))
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return ErrTimeout
	}
	return err
}

// evalAwaitPromise is an evaluate option that waits for a returned promise
// to settle.
func evalAwaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// callExpression builds the expression calling the function declaration fn
// with args, each marshaled to a JSON literal.
func callExpression(fn string, args []interface{}) (string, error) {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(strings.TrimSpace(fn))
	b.WriteString(")(")
	for i, arg := range args {
		buf, err := json.Marshal(arg)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.Write(buf)
	}
	b.WriteString(")")
	return b.String(), nil
}

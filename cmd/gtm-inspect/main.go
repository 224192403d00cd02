// gtm-inspect loads a page in a browser and prints its Google Tag Manager
// state: the registered containers, the dataLayer history, a container's
// data model and selected variables.
//
// Usage:
//
//	gtm-inspect -url https://example.com -var page_type,ecommerce.value
//	gtm-inspect -serve ./testdata -url index.html -format yaml
//	gtm-inspect -config inspect.yaml -push '{"event":"test"}'
//
// Flags set on the command line override the values of the -config file.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/gobwas/ws"

	"github.com/chromedp/datalayer"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	switch {
	case err == flag.ErrHelp:
		os.Exit(0)
	case err != nil:
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *Config, w io.Writer) error {
	urlstr := cfg.URL
	if cfg.Serve != "" {
		base, err := serveDir(ctx, cfg.Serve, cfg.Verbose)
		if err != nil {
			return err
		}
		urlstr = base + strings.TrimPrefix(cfg.URL, "/")
	}

	var (
		allocCtx context.Context
		cancel   context.CancelFunc
	)
	if cfg.Remote != "" {
		if cfg.Insecure {
			ws.DefaultDialer.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		}
		allocCtx, cancel = chromedp.NewRemoteAllocator(ctx, cfg.Remote)
	} else {
		allocCtx, cancel = chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	}
	defer cancel()

	var (
		ctxOpts []chromedp.ContextOption
		dlOpts  []datalayer.Option
	)
	if cfg.Verbose {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(log.Printf))
		dlOpts = append(dlOpts, datalayer.WithLogf(log.Printf), datalayer.WithDebugf(log.Printf))
	}
	tabCtx, cancel := chromedp.NewContext(allocCtx, ctxOpts...)
	defer cancel()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(urlstr)); err != nil {
		return err
	}
	report, err := inspect(tabCtx, datalayer.Tab(), cfg, urlstr, dlOpts...)
	if err != nil {
		return err
	}
	return writeReport(w, cfg.Format, report)
}

// inspect collects the report for the page.
func inspect(ctx context.Context, page datalayer.Page, cfg *Config, urlstr string, opts ...datalayer.Option) (*Report, error) {
	dl := datalayer.New(page, cfg.Container, opts...)
	if cfg.Wait != "" {
		if err := dl.WaitForEvent(ctx, cfg.Wait, datalayer.WithPollingTimeout(cfg.Timeout)); err != nil {
			return nil, err
		}
	}
	if cfg.Push != nil {
		if err := dl.Push(ctx, cfg.Push); err != nil {
			return nil, err
		}
	}

	r := &Report{URL: urlstr, Containers: []string{}}
	ids, err := dl.ContainerIDs(ctx)
	switch {
	case errors.Is(err, datalayer.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		r.Containers = ids
	}
	if r.History, err = dl.History(ctx); err != nil {
		return nil, err
	}

	r.Container = cfg.Container
	if r.Container == "" && len(r.Containers) != 0 {
		r.Container = r.Containers[0]
		dl = datalayer.New(page, r.Container, opts...)
	}
	if r.Container == "" {
		if len(cfg.Vars) != 0 {
			return nil, &datalayer.NotFoundError{Kind: datalayer.KindRegistry}
		}
		return r, nil
	}

	if r.DataModel, err = dl.DataModel(ctx, ""); err != nil {
		return nil, err
	}
	for _, name := range cfg.Vars {
		var v interface{}
		ok, err := dl.Get(ctx, name, &v)
		if err != nil {
			return nil, err
		}
		if !ok {
			r.Undefined = append(r.Undefined, name)
			continue
		}
		if r.Variables == nil {
			r.Variables = make(map[string]interface{})
		}
		r.Variables[name] = v
	}
	return r, nil
}

package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// newFileRouter returns a router serving the files under dir.
func newFileRouter(dir string, verbose bool) http.Handler {
	r := chi.NewRouter()
	if verbose {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Handle("/*", http.FileServer(http.Dir(dir)))
	return r
}

// serveDir serves dir on a random loopback port until ctx is done. It
// returns the base url of the server.
func serveDir(ctx context.Context, dir string, verbose bool) (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	srv := &http.Server{
		Handler:           newFileRouter(dir, verbose),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("serve %s: %v", dir, err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	return "http://" + l.Addr().String() + "/", nil
}

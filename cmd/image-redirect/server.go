package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/image-redirect/pkg/cache"
	"github.com/Sternrassler/image-redirect/pkg/logging"
	"github.com/Sternrassler/image-redirect/pkg/metrics"
	"github.com/Sternrassler/image-redirect/pkg/redirect"
)

// newHandler wires the service routes behind access logging and panic recovery.
func newHandler(store cache.Store, resolver redirect.Resolver, sessions redirect.SessionIssuer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(store))
	mux.Handle("GET /metrics", metrics.Handler())
	redirect.New(store, resolver, sessions).Register(mux)

	return logging.Middleware(logging.NewLogger("http"), recoverer(mux))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while a networked cache backend is unreachable.
func readyHandler(store cache.Store) http.HandlerFunc {
	pinger, _ := store.(cache.Pinger)

	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := pinger.Ping(ctx); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("Readiness check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "cache backend unavailable")
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// recoverer turns a handler panic into a 500 response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				hlog.FromRequest(r).Error().Interface("panic", v).Str("path", r.URL.Path).Msg("Handler panicked")
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

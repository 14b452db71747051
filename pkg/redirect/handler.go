// Package redirect serves GET /{device}/ by redirecting to a cached or
// freshly resolved image URL.
package redirect

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/image-redirect/pkg/cache"
	"github.com/Sternrassler/image-redirect/pkg/upstream"
)

// Response bodies. The upstream code message keeps its historical spelling
// because clients match on it.
const (
	MsgInvalidID         = "Invalid id: not a number"
	MsgUpstreamCode      = "Invail response code from external server"
	MsgUpstreamDecode    = "Failed to parse response from external server"
	MsgUpstreamTransport = "Failed to send request to external server"
)

// CanonicalQuery is appended to requests that arrive without a query.
const CanonicalQuery = "0"

// Pattern is the route served by Handler.
const Pattern = "GET /{device}/{$}"

var (
	redirectResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_redirect_responses_total",
		Help: "Total redirect handler responses by outcome",
	}, []string{"outcome"})

	redirectCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_redirect_coalesced_total",
		Help: "Total cache misses answered by another request's upstream call",
	})
)

// Resolver resolves a device category to an image URL.
type Resolver interface {
	Resolve(ctx context.Context, device string) (string, error)
}

// SessionIssuer makes sure a client holds a session cookie.
type SessionIssuer interface {
	Ensure(w http.ResponseWriter, r *http.Request) (id string, minted bool)
}

// Handler orchestrates one redirect request.
type Handler struct {
	store    cache.Store
	resolver Resolver
	sessions SessionIssuer
	flights  singleflight.Group
	logger   zerolog.Logger
}

// New creates a redirect handler. sessions may be nil.
func New(store cache.Store, resolver Resolver, sessions SessionIssuer) *Handler {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if resolver == nil {
		panic("resolver cannot be nil")
	}
	return &Handler{
		store:    store,
		resolver: resolver,
		sessions: sessions,
		logger:   log.With().Str("component", "redirect").Logger(),
	}
}

// Register mounts the handler on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle(Pattern, h)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	device := deviceOf(r)
	if device == "" {
		http.NotFound(w, r)
		return
	}

	raw, err := rawIDValue(r.URL.RawQuery)
	if errors.Is(err, errNoParams) {
		redirectResponsesTotal.WithLabelValues("canonical").Inc()
		movedPermanently(w, "/"+url.PathEscape(device)+"/?"+CanonicalQuery)
		return
	}

	var id int64
	if err == nil {
		id, err = parseID(raw)
	}
	if err != nil {
		h.logger.Debug().Str("device", device).Str("query", r.URL.RawQuery).Msg("Rejected non-numeric id")
		redirectResponsesTotal.WithLabelValues("invalid_id").Inc()
		writeText(w, http.StatusBadRequest, MsgInvalidID)
		return
	}

	if h.sessions != nil {
		h.sessions.Ensure(w, r)
	}

	ctx := r.Context()

	target, err := h.store.Lookup(ctx, id)
	switch {
	case err == nil:
		h.logger.Debug().Int64("id", id).Str("device", device).Msg("Cache hit")
		redirectResponsesTotal.WithLabelValues("hit").Inc()
		w.Header().Set("X-Cache-Status", "HIT")
		movedPermanently(w, target)
		return
	case errors.Is(err, cache.ErrCacheMiss):
		h.logger.Debug().Int64("id", id).Str("device", device).Msg("Cache miss")
	default:
		h.logger.Warn().Err(err).Int64("id", id).Msg("Cache lookup failed, resolving upstream")
	}

	target, err = h.resolve(ctx, device, id)
	if err != nil {
		status, body, outcome := upstreamFailure(err)
		redirectResponsesTotal.WithLabelValues(outcome).Inc()
		writeText(w, status, body)
		return
	}

	redirectResponsesTotal.WithLabelValues("resolved").Inc()
	w.Header().Set("X-Cache-Status", "MISS")
	movedPermanently(w, target)
}

// resolve runs at most one upstream resolution per id at a time. Callers
// that arrive while a resolution is in flight share its result.
//
// The flight runs on a context detached from the caller, so one client
// disconnecting does not fail the others; the upstream client timeout
// still bounds it. No cache lock is held during the upstream call.
func (h *Handler) resolve(ctx context.Context, device string, id int64) (string, error) {
	ch := h.flights.DoChan(cache.Field(id), func() (any, error) {
		fctx := context.WithoutCancel(ctx)

		// Another flight may have completed since our lookup.
		if target, err := h.store.Lookup(fctx, id); err == nil {
			return target, nil
		}

		target, err := h.resolver.Resolve(fctx, device)
		if err != nil {
			return "", err
		}

		if err := h.store.Insert(fctx, id, target); err != nil {
			h.logger.Warn().Err(err).Int64("id", id).Msg("Cache insert failed, redirecting anyway")
		}
		return target, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			redirectCoalescedTotal.Inc()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// upstreamFailure maps a resolution error to the response sent to the client.
func upstreamFailure(err error) (status int, body, outcome string) {
	switch {
	case errors.Is(err, upstream.ErrLogical):
		return http.StatusInternalServerError, MsgUpstreamCode, "upstream_logical"
	case errors.Is(err, upstream.ErrDecode):
		return http.StatusInternalServerError, MsgUpstreamDecode, "upstream_decode"
	default:
		return http.StatusInternalServerError, MsgUpstreamTransport, "upstream_transport"
	}
}

// deviceOf returns the {device} path segment.
func deviceOf(r *http.Request) string {
	if d := r.PathValue("device"); d != "" {
		return d
	}
	// Served without a pattern, e.g. directly in tests.
	d := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if strings.Contains(d, "/") {
		return ""
	}
	return d
}

func movedPermanently(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusMovedPermanently)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

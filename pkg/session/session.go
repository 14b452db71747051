// Package session issues the per-client session cookie.
//
// The cookie carries a random identifier signed with an HMAC key. It has no
// authorization weight: the service only makes sure every client holds one.
package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var sessionsMintedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "image_redirect_sessions_minted_total",
	Help: "Total number of session cookies issued",
})

const (
	// DefaultCookieName is the cookie holding the session identifier.
	DefaultCookieName = "session_id"

	// MinKeyLength is the minimum accepted signing key size in bytes.
	MinKeyLength = 32
)

// Config holds session cookie settings.
type Config struct {
	// CookieName defaults to DefaultCookieName.
	CookieName string

	// Key signs identifiers. When empty a random key is generated, so
	// cookies issued before a restart are replaced.
	Key []byte

	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// Manager mints and verifies session cookies.
type Manager struct {
	name   string
	key    []byte
	secure bool
	logger zerolog.Logger
}

// NewManager creates a session manager.
func NewManager(cfg Config) (*Manager, error) {
	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}

	key := cfg.Key
	if len(key) == 0 {
		key = make([]byte, MinKeyLength)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}
	if len(key) < MinKeyLength {
		return nil, fmt.Errorf("session key must be at least %d bytes (got %d)", MinKeyLength, len(key))
	}

	return &Manager{
		name:   name,
		key:    key,
		secure: cfg.Secure,
		logger: log.With().Str("component", "session").Logger(),
	}, nil
}

// Ensure returns the session identifier of r, minting a cookie on w when
// the request carries none or carries one that fails verification.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (id string, minted bool) {
	if c, err := r.Cookie(m.name); err == nil {
		if id, ok := m.verify(c.Value); ok {
			return id, false
		}
		m.logger.Debug().Msg("Replacing session cookie with invalid signature")
	}

	id = uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    m.sign(id),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	sessionsMintedTotal.Inc()
	m.logger.Debug().Str("session_id", id).Msg("Session minted")

	return id, true
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.name
}

func (m *Manager) sign(id string) string {
	return id + "." + base64.RawURLEncoding.EncodeToString(m.mac(id))
}

func (m *Manager) verify(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(got, m.mac(id)) {
		return "", false
	}
	return id, true
}

func (m *Manager) mac(id string) []byte {
	h := hmac.New(sha256.New, m.key)
	h.Write([]byte(id))
	return h.Sum(nil)
}

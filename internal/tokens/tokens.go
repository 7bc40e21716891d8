// Package tokens supplies bearer credentials to source adapters. Interactive
// acquisition flows live outside this process; a provider either produces a
// valid token or fails with an auth fault.
package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/worklens/worklens/internal/faults"
)

// Provider yields a valid bearer credential for one remote system.
type Provider interface {
	// Token returns a credential ready to place in an Authorization header.
	Token(ctx context.Context) (string, error)
	// Configured reports whether the provider has material to work with.
	// It performs no I/O.
	Configured() bool
}

// Static wraps a fixed token, typically read from the environment.
type Static struct {
	value string
}

// NewStatic builds a provider around a fixed token string.
func NewStatic(token string) *Static {
	return &Static{value: token}
}

func (s *Static) Token(ctx context.Context) (string, error) {
	if s.value == "" {
		return "", faults.New(faults.KindAuth, "no token configured")
	}
	return s.value, nil
}

func (s *Static) Configured() bool {
	return s.value != ""
}

// Bearer wraps a JWT bearer credential and refuses to hand it out once its
// exp claim has passed, so adapters fail fast with an auth fault instead of
// burning retry budget on guaranteed 401s. Tokens without an exp claim are
// passed through unchanged.
type Bearer struct {
	mu     sync.Mutex
	value  string
	expiry time.Time
	parsed bool
	now    func() time.Time
}

// NewBearer builds an expiry-aware provider around a JWT string.
func NewBearer(token string) *Bearer {
	return &Bearer{value: token, now: time.Now}
}

func (b *Bearer) Token(ctx context.Context) (string, error) {
	if b.value == "" {
		return "", faults.New(faults.KindAuth, "no token configured")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.parsed {
		b.parsed = true
		// Signature verification belongs to the remote; we only read exp.
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(b.value, claims); err == nil {
			if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
				b.expiry = exp.Time
			}
		}
	}

	if !b.expiry.IsZero() && b.now().After(b.expiry) {
		return "", faults.New(faults.KindAuth, "bearer token expired").
			With("expired_at", b.expiry.Format(time.RFC3339))
	}

	return b.value, nil
}

func (b *Bearer) Configured() bool {
	return b.value != ""
}

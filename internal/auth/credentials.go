// Package auth provides the credential collaborator consumed by the
// transcription driver before each session start. Token acquisition itself is
// external; this package only caches and validates what it is handed.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// expiryMargin is subtracted from the token lifetime so a session never
// starts with credentials about to lapse mid-handshake.
const expiryMargin = 30 * time.Second

// Credentials is a set of short-lived credentials for the speech services.
type Credentials struct {
	AccessKeyID  string
	SecretKey    string
	SessionToken string
	Expiry       time.Time
}

// Valid reports whether the credentials are usable, with margin.
func (c Credentials) Valid() bool {
	if c.AccessKeyID == "" {
		return false
	}
	return time.Now().Add(expiryMargin).Before(c.Expiry)
}

// Provider hands out valid credentials, refreshing when expired.
type Provider interface {
	// ValidCredentials returns usable credentials, fetching fresh ones when
	// the cached set has expired.
	ValidCredentials(ctx context.Context) (Credentials, error)

	// HasValidCredentials reports whether a cached, unexpired set exists
	// without triggering a fetch.
	HasValidCredentials() bool
}

// FetchFunc acquires a fresh credential set from the identity collaborator.
type FetchFunc func(ctx context.Context) (Credentials, error)

// CachingProvider caches credentials from a FetchFunc until they expire.
// Safe for use by both channel drivers concurrently.
type CachingProvider struct {
	mu    sync.Mutex
	fetch FetchFunc
	creds Credentials
}

// NewCachingProvider creates a provider around fetch.
func NewCachingProvider(fetch FetchFunc) *CachingProvider {
	return &CachingProvider{fetch: fetch}
}

// ValidCredentials returns the cached set when still valid, otherwise fetches
// a fresh one. Retrying a failed fetch is the caller's policy.
func (p *CachingProvider) ValidCredentials(ctx context.Context) (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.creds.Valid() {
		return p.creds, nil
	}

	creds, err := p.fetch(ctx)
	if err != nil {
		return Credentials{}, err
	}
	p.creds = creds

	log.Debug().
		Str("component", "auth").
		Time("expiry", creds.Expiry).
		Msg("credentials refreshed")
	return creds, nil
}

// HasValidCredentials reports whether the cached set is still usable.
func (p *CachingProvider) HasValidCredentials() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creds.Valid()
}

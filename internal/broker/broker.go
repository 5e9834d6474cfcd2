// Package broker caches secrets-service session tokens and the short-lived
// AWS credentials read with them.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SessionToken is a secrets-service client token. It is replaced whole when
// stale and never persisted.
type SessionToken struct {
	Value     string
	ExpiresAt time.Time
}

// ScopedCredential is a dynamic AWS key set issued for one secret path.
type ScopedCredential struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	LeaseSeconds    int
	FetchedAt       time.Time
}

// AuthResult is what a secrets service returns on login. Lease is zero when
// the response did not carry one.
type AuthResult struct {
	Token string
	Lease time.Duration
}

// Secret is the raw credential material read from a path.
type Secret struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	LeaseSeconds    int
}

// SecretsService is the external system issuing tokens and credentials.
type SecretsService interface {
	Authenticate(ctx context.Context, roleID, secretID string) (AuthResult, error)
	ReadSecret(ctx context.Context, token, path string) (Secret, error)
}

type Config struct {
	RoleID       string
	SecretID     string
	DefaultLease time.Duration
	SafetyMargin time.Duration
}

type Broker struct {
	service SecretsService
	cfg     Config
	now     func() time.Time

	tokenMu sync.Mutex
	token   *SessionToken

	credsMu sync.RWMutex
	creds   map[string]ScopedCredential

	fetches singleflight.Group
}

func New(service SecretsService, cfg Config) *Broker {
	return NewWithNow(service, cfg, time.Now)
}

func NewWithNow(service SecretsService, cfg Config, now func() time.Time) *Broker {
	if cfg.DefaultLease <= 0 {
		cfg.DefaultLease = time.Hour
	}
	if cfg.SafetyMargin < 0 {
		cfg.SafetyMargin = 0
	}
	return &Broker{
		service: service,
		cfg:     cfg,
		now:     now,
		creds:   make(map[string]ScopedCredential),
	}
}

// SessionToken returns the cached token while now < ExpiresAt - margin and
// logs in again otherwise.
func (b *Broker) SessionToken(ctx context.Context) (SessionToken, error) {
	b.tokenMu.Lock()
	defer b.tokenMu.Unlock()

	now := b.now()
	if b.token != nil && now.Before(b.token.ExpiresAt.Add(-b.cfg.SafetyMargin)) {
		return *b.token, nil
	}

	if b.cfg.RoleID == "" || b.cfg.SecretID == "" {
		return SessionToken{}, ErrAuthConfiguration
	}

	res, err := b.service.Authenticate(ctx, b.cfg.RoleID, b.cfg.SecretID)
	if err != nil {
		if errors.Is(err, ErrAuthConnectivity) || errors.Is(err, ErrAuthRejected) {
			return SessionToken{}, err
		}
		return SessionToken{}, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	if res.Token == "" {
		return SessionToken{}, ErrAuthRejected
	}

	lease := res.Lease
	if lease <= 0 {
		lease = b.cfg.DefaultLease
	}
	tok := SessionToken{Value: res.Token, ExpiresAt: now.Add(lease)}
	b.token = &tok
	return tok, nil
}

// ScopedCredential returns credentials for path, reading them again once the
// cached entry enters its safety margin. Concurrent misses for the same path
// share a single read. The shared read ignores cancellation so one caller
// giving up never fails the others; each caller still stops waiting when its
// own ctx is done.
func (b *Broker) ScopedCredential(ctx context.Context, path string) (ScopedCredential, error) {
	if cred, ok := b.cached(path); ok {
		return cred, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := b.fetches.DoChan(path, func() (any, error) {
		if cred, ok := b.cached(path); ok {
			return cred, nil
		}
		return b.fetch(shared, path)
	})
	select {
	case <-ctx.Done():
		return ScopedCredential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return ScopedCredential{}, res.Err
		}
		return res.Val.(ScopedCredential), nil
	}
}

// Invalidate drops the cached credential for path.
func (b *Broker) Invalidate(path string) bool {
	b.credsMu.Lock()
	defer b.credsMu.Unlock()
	_, ok := b.creds[path]
	delete(b.creds, path)
	return ok
}

// ExpiresAt is the instant a cached credential stops being served.
func (b *Broker) ExpiresAt(cred ScopedCredential) time.Time {
	return cred.FetchedAt.Add(time.Duration(cred.LeaseSeconds)*time.Second - b.cfg.SafetyMargin)
}

func (b *Broker) cached(path string) (ScopedCredential, bool) {
	b.credsMu.RLock()
	cred, ok := b.creds[path]
	b.credsMu.RUnlock()
	if !ok {
		return ScopedCredential{}, false
	}
	if !b.now().Before(b.ExpiresAt(cred)) {
		return ScopedCredential{}, false
	}
	return cred, true
}

func (b *Broker) fetch(ctx context.Context, path string) (ScopedCredential, error) {
	now := b.now()

	tok, err := b.SessionToken(ctx)
	if err != nil {
		return ScopedCredential{}, &CredentialFetchError{Path: path, Stage: StageTokenRetrieval, Err: err}
	}

	secret, err := b.service.ReadSecret(ctx, tok.Value, path)
	if err != nil {
		return ScopedCredential{}, &CredentialFetchError{Path: path, Stage: StageCredentialRead, Err: err}
	}
	if secret.AccessKeyID == "" || secret.SecretAccessKey == "" {
		return ScopedCredential{}, &CredentialFetchError{
			Path:  path,
			Stage: StageCredentialRead,
			Err:   errors.New("secret is missing access_key or secret_key"),
		}
	}

	lease := secret.LeaseSeconds
	if lease <= 0 {
		lease = int(b.cfg.DefaultLease / time.Second)
	}
	cred := ScopedCredential{
		AccessKeyID:     secret.AccessKeyID,
		SecretAccessKey: secret.SecretAccessKey,
		SessionToken:    secret.SessionToken,
		LeaseSeconds:    lease,
		FetchedAt:       now,
	}

	b.credsMu.Lock()
	b.creds[path] = cred
	b.credsMu.Unlock()
	return cred, nil
}

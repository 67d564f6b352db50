package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/terraconstructs/classgrid/internal/session"
)

// StaticProvider is a session.IdentityProvider for a pre-issued bearer JWT,
// as used by service accounts and CI. The token is not verified locally; the
// receiving service does that. Its claims only name the identity.
type StaticProvider struct {
	mu     sync.Mutex
	token  string
	claims *bearerClaims
	hub    *hub
}

type bearerClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var _ session.IdentityProvider = (*StaticProvider)(nil)

// NewStaticProvider parses token's claims. A token without a subject is
// rejected.
func NewStaticProvider(token string) (*StaticProvider, error) {
	claims, err := parseBearer(token)
	if err != nil {
		return nil, err
	}
	return &StaticProvider{token: token, claims: claims, hub: newHub()}, nil
}

func parseBearer(token string) (*bearerClaims, error) {
	claims := &bearerClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse bearer token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("bearer token has no subject claim")
	}
	return claims, nil
}

// Subscribe delivers SignedIn for the token's subject, or SignedOut once
// SignOut has been called.
func (p *StaticProvider) Subscribe(onEvent func(session.Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hub.subscribe(onEvent, p.currentEvent())
}

// SignOut drops the token. It never fails.
func (p *StaticProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == "" {
		return nil
	}
	p.token = ""
	p.claims = nil
	p.hub.emit(session.SignedOut{})
	return nil
}

func (p *StaticProvider) currentEvent() session.Event {
	if p.claims == nil {
		return session.SignedOut{}
	}
	claims := p.claims
	return session.SignedIn{
		IdentityID: claims.Subject,
		Defaults: session.Defaults{
			DisplayName: firstNonEmpty(claims.Email, claims.Name),
			Role:        claims.Role,
		},
		Mint: func(ctx context.Context) (string, error) {
			return p.mint(claims.Subject)
		},
	}
}

func (p *StaticProvider) mint(subject string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.claims == nil || p.claims.Subject != subject {
		return "", fmt.Errorf("%w: bearer token was signed out", session.ErrCredential)
	}
	if exp := p.claims.ExpiresAt; exp != nil && time.Now().After(exp.Time) {
		return "", fmt.Errorf("%w: bearer token expired at %s", session.ErrCredential, exp.Time.Format(time.RFC3339))
	}
	return p.token, nil
}

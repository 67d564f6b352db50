package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/terraconstructs/classgrid/internal/session"
	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/client/rp/cli"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"golang.org/x/oauth2"
)

const defaultRoleClaim = "role"

// OIDCConfig configures an OIDCProvider.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// RoleClaim names the ID token claim carrying the provider's default
	// role. Defaults to "role".
	RoleClaim string
	// Prompt shows device authorization instructions to the user.
	Prompt     func(*oidc.DeviceAuthorizationResponse)
	HTTPClient *http.Client
}

// OIDCProvider is a session.IdentityProvider backed by an OpenID Connect
// issuer. Sign-in runs the device authorization flow; credentials are minted
// from the stored refresh token.
type OIDCProvider struct {
	cfg    OIDCConfig
	store  CredentialStore
	oauth  *oauth2.Config
	party  rp.RelyingParty
	revoke func(ctx context.Context, token string) error
	hub    *hub

	// mu orders credential changes with the events they produce.
	mu sync.Mutex
}

var _ session.IdentityProvider = (*OIDCProvider)(nil)

// NewOIDCProvider discovers the issuer configuration and returns a provider
// whose initial state comes from store.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig, store CredentialStore) (*OIDCProvider, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" {
		return nil, errors.New("oidc: issuer and client id are required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, oidc.ScopeProfile, oidc.ScopeEmail, oidc.ScopeOfflineAccess}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	party, err := rp.NewRelyingPartyOIDC(
		ctx,
		cfg.Issuer,
		cfg.ClientID,
		cfg.ClientSecret,
		"", // redirectURI - not used for device flow
		cfg.Scopes,
		rp.WithHTTPClient(cfg.HTTPClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider at %s: %w", cfg.Issuer, err)
	}

	p := newOIDCProvider(cfg, store, party.OAuthConfig())
	p.party = party
	p.revoke = func(ctx context.Context, token string) error {
		return rp.RevokeToken(ctx, party, token, "refresh_token")
	}
	return p, nil
}

func newOIDCProvider(cfg OIDCConfig, store CredentialStore, oauth *oauth2.Config) *OIDCProvider {
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = defaultRoleClaim
	}
	return &OIDCProvider{
		cfg:   cfg,
		store: store,
		oauth: oauth,
		hub:   newHub(),
	}
}

// Subscribe delivers the provider's current state first, then every change.
func (p *OIDCProvider) Subscribe(onEvent func(session.Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hub.subscribe(onEvent, p.currentEvent())
}

// Login runs the device authorization flow, stores the resulting credentials
// and announces the signed-in identity.
func (p *OIDCProvider) Login(ctx context.Context) (*Credentials, error) {
	if p.party == nil {
		return nil, errors.New("oidc: provider was not discovered")
	}

	authResponse, err := rp.DeviceAuthorization(ctx, p.cfg.Scopes, p.party, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start device authorization flow: %w", err)
	}
	if p.cfg.Prompt != nil {
		p.cfg.Prompt(authResponse)
	} else {
		log.Printf("Visit %s and enter code %s", authResponse.VerificationURI, authResponse.UserCode)
	}
	if authResponse.VerificationURIComplete != "" {
		cli.OpenBrowser(authResponse.VerificationURIComplete)
	}

	interval := time.Duration(authResponse.Interval) * time.Second
	if interval == 0 {
		interval = 5 * time.Second
	}
	token, err := rp.DeviceAccessToken(ctx, authResponse.DeviceCode, interval, p.party)
	if err != nil {
		return nil, fmt.Errorf("device authorization failed: %w", err)
	}
	if token.IDToken == "" {
		return nil, errors.New("device authorization returned no ID token")
	}

	claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, token.IDToken, p.party.IDTokenVerifier())
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	creds := &Credentials{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
		Subject:      claims.Subject,
		Email:        claims.Email,
		Name:         claims.Name,
		Role:         claimString(claims.Claims, p.cfg.RoleClaim),
	}
	if err := p.SetCredentials(creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// SetCredentials stores creds and announces the identity they carry.
func (p *OIDCProvider) SetCredentials(creds *Credentials) error {
	if creds == nil || creds.Subject == "" {
		return errors.New("oidc: credentials carry no subject")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.SaveCredentials(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	p.hub.emit(p.signedIn(creds))
	return nil
}

// SignOut forgets the stored credentials, announces SignedOut and revokes
// the refresh token at the issuer. Local state is cleared even when
// revocation fails.
func (p *OIDCProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	creds, loadErr := p.store.LoadCredentials()
	delErr := p.store.DeleteCredentials()
	p.hub.emit(session.SignedOut{})
	p.mu.Unlock()

	if delErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", delErr)
	}
	if loadErr != nil || creds.RefreshToken == "" || p.revoke == nil {
		return nil
	}
	if err := p.revoke(ctx, creds.RefreshToken); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// currentEvent derives an event from the stored credentials. Callers hold mu.
func (p *OIDCProvider) currentEvent() session.Event {
	creds, err := p.store.LoadCredentials()
	if err != nil {
		if !errors.Is(err, ErrNotSignedIn) {
			log.Printf("identity: treating unreadable credentials as signed out: %v", err)
		}
		return session.SignedOut{}
	}
	if creds.Subject == "" {
		return session.SignedOut{}
	}
	return p.signedIn(creds)
}

func (p *OIDCProvider) signedIn(creds *Credentials) session.SignedIn {
	subject := creds.Subject
	return session.SignedIn{
		IdentityID: subject,
		Defaults: session.Defaults{
			DisplayName: firstNonEmpty(creds.Email, creds.Name),
			Role:        creds.Role,
		},
		Mint: func(ctx context.Context) (string, error) {
			return p.mint(ctx, subject)
		},
	}
}

// mint returns a valid access token for subject, refreshing it when needed.
func (p *OIDCProvider) mint(ctx context.Context, subject string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	creds, err := p.store.LoadCredentials()
	if err != nil {
		return "", fmt.Errorf("%w: %v", session.ErrCredential, err)
	}
	if creds.Subject != subject {
		return "", fmt.Errorf("%w: signed-in identity changed", session.ErrCredential)
	}
	if creds.AccessToken != "" && !creds.IsExpired() {
		return creds.AccessToken, nil
	}
	if creds.RefreshToken == "" {
		return "", fmt.Errorf("%w: access token expired and no refresh token is stored", session.ErrCredential)
	}

	token, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("%w: failed to refresh token: %v", session.ErrCredential, err)
	}

	refreshed := *creds
	refreshed.AccessToken = token.AccessToken
	refreshed.TokenType = token.TokenType
	refreshed.ExpiresAt = token.Expiry
	if token.RefreshToken != "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	if err := p.store.SaveCredentials(&refreshed); err != nil {
		log.Printf("identity: failed to persist refreshed credentials: %v", err)
	}
	return refreshed.AccessToken, nil
}

func claimString(claims map[string]any, name string) string {
	if v, ok := claims[name].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

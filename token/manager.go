package token

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bool64/ctxd"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/memoflight/store"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Config describes the issuers, required.
	Config Config

	// Store holds token entries. Default: a TLRU store sized from
	// Config.Cache with a JWT-exp time-to-use function.
	Store store.Store

	// HTTPClient performs token endpoint requests. Default: a client
	// with Timeout applied.
	HTTPClient *http.Client

	// Timeout is the token endpoint request timeout, default 10 seconds.
	Timeout time.Duration

	// Logger collects messages with context.
	Logger ctxd.Logger

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Manager obtains and caches tokens per (issuer, type). Concurrent callers
// requesting the same token share a single endpoint fetch, and the fetch
// runs on a cancel-shielded context so one caller giving up does not void
// the token for the rest.
type Manager struct {
	cfg      Config
	store    store.Store
	client   *http.Client
	insecure *http.Client
	log      ctxd.Logger
	clock    func() time.Time

	sf singleflight.Group
}

// NewManager creates a Manager. The configuration is validated here.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = ctxd.NoOpLogger{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	st := cfg.Store
	if st == nil {
		maxEntries := cfg.Config.Cache.MaxEntries
		if maxEntries <= 0 {
			maxEntries = 1024
		}
		st = store.NewTLRU(store.TLRUConfig{
			Name:    "token",
			MaxCost: maxEntries,
			TTU:     JWTExpTTU(DefaultFallbackTTL),
			Clock:   cfg.Clock,
			Logger:  cfg.Logger,
		})
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	insecure := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // per-issuer verify_tls opt-out
		},
	}

	return &Manager{
		cfg:      cfg.Config,
		store:    st,
		client:   client,
		insecure: insecure,
		log:      cfg.Logger,
		clock:    cfg.Clock,
	}, nil
}

// Store exposes the underlying token store for diagnostics.
func (m *Manager) Store() store.Store { return m.store }

// Token returns the cached or freshly fetched token for the issuer.
// forceRefresh bypasses the cache read but still coalesces with concurrent
// fetches for the same key. Access-token callers never see the refresh
// token.
func (m *Manager) Token(ctx context.Context, issuer string, typ Type, forceRefresh bool) (*Entry, error) {
	ic, ok := m.cfg.Issuers[issuer]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			ErrUnknownIssuer, issuer, strings.Join(m.cfg.Names(), ", "))
	}
	if !ic.enabled() {
		return nil, fmt.Errorf("%w: %q", ErrIssuerDisabled, issuer)
	}

	key := issuer + ":" + string(typ)
	if !forceRefresh {
		if e, ok := m.cached(key, typ, ic); ok {
			return m.view(e, typ), nil
		}
	}

	// One endpoint fetch per key regardless of concurrent callers. The
	// fetch itself is detached from this caller's cancellation so joiners
	// and the cache still get the token if this caller gives up.
	v, err, _ := m.sf.Do(key, func() (any, error) {
		if !forceRefresh {
			if e, ok := m.cached(key, typ, ic); ok {
				return e, nil
			}
		}
		return m.fetchAndStore(context.WithoutCancel(ctx), issuer, typ, ic)
	})
	if err != nil {
		return nil, err
	}

	return m.view(v.(*Entry), typ), nil
}

// cached returns a stored entry unless it is absent, expired, or inside the
// prefetch window (in which case it is refreshed proactively). The window
// comes from the grant serving the requested type.
func (m *Manager) cached(key string, typ Type, ic IssuerConfig) (*Entry, bool) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, false
	}
	e, ok := v.(*Entry)
	if !ok {
		return nil, false
	}

	grant := ic.Access
	if typ == TypeRefresh && ic.Refresh != nil {
		grant = *ic.Refresh
	}
	window := time.Duration(grant.prefetchWindow()) * time.Second
	if !e.ExpiresAt.IsZero() && e.ExpiresAt.Sub(m.clock()) <= window {
		return nil, false
	}
	return e, true
}

func (m *Manager) view(e *Entry, typ Type) *Entry {
	if typ == TypeAccess {
		return e.WithoutRefreshToken()
	}
	return e
}

func (m *Manager) fetchAndStore(ctx context.Context, issuer string, typ Type, ic IssuerConfig) (*Entry, error) {
	grant := ic.Access
	if typ == TypeRefresh && ic.Refresh != nil {
		grant = *ic.Refresh
	}

	// Renew access tokens through the refresh grant when one is
	// configured and a refresh token is on hand.
	refreshToken := ""
	if typ == TypeAccess && ic.Refresh != nil && ic.Refresh.grantType() == "refresh_token" {
		if v, ok := m.store.Get(issuer + ":" + string(TypeRefresh)); ok {
			if re, ok := v.(*Entry); ok && re.RefreshToken != "" {
				grant = *ic.Refresh
				refreshToken = re.RefreshToken
			}
		}
	}

	resp, err := m.fetch(ctx, grant, refreshToken)
	if err != nil && refreshToken != "" {
		// Refresh grant failed; fall back to the primary grant.
		m.log.Warn(ctx, "refresh grant failed, falling back to primary grant",
			"issuer", issuer, "error", err)
		grant = ic.Access
		resp, err = m.fetch(ctx, grant, "")
	}
	if err != nil {
		return nil, err
	}

	tokenString := resp.AccessToken
	if tokenString == "" {
		tokenString = resp.IDToken
	}
	if tokenString == "" {
		return nil, ErrNoToken
	}

	now := m.clock()
	entry := &Entry{
		Token:     tokenString,
		ExpiresAt: computeExpiresAt(tokenString, resp.ExpiresIn, grant.FallbackTTLSeconds, now),
	}
	if payload, err := DecodePayload(tokenString); err == nil {
		entry.Payload = payload
	}

	if resp.RefreshToken != "" {
		entry.RefreshToken = resp.RefreshToken
		refreshEntry := &Entry{
			Token:        resp.RefreshToken,
			ExpiresAt:    entry.ExpiresAt,
			RefreshToken: resp.RefreshToken,
		}
		if err := m.store.Set(issuer+":"+string(TypeRefresh), refreshEntry); err != nil {
			m.log.Warn(ctx, "could not cache refresh token", "issuer", issuer, "error", err)
		}
	}

	// Caching is best effort; the fetched token is returned either way.
	if err := m.store.Set(issuer+":"+string(typ), entry); err != nil {
		m.log.Warn(ctx, "could not cache token", "issuer", issuer, "type", typ, "error", err)
	}

	m.log.Debug(ctx, "fetched token",
		"issuer", issuer, "type", typ, "expiresAt", entry.ExpiresAt)

	return entry, nil
}

// endpointResponse is the token endpoint's JSON body.
type endpointResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (m *Manager) fetch(ctx context.Context, grant GrantConfig, refreshToken string) (*endpointResponse, error) {
	data, err := formData(grant, refreshToken)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, grant.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEndpoint, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := m.client
	if !grant.verifyTLS() {
		client = m.insecure
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEndpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrEndpoint, grant.TokenURL, resp.StatusCode)
	}

	var out endpointResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrEndpoint, err)
	}
	return &out, nil
}

func formData(grant GrantConfig, refreshToken string) (url.Values, error) {
	data := url.Values{}
	data.Set("grant_type", grant.grantType())

	switch grant.grantType() {
	case "client_credentials":
	case "password":
		data.Set("username", grant.Username)
		data.Set("password", grant.Password)
	case "refresh_token":
		if refreshToken == "" {
			return nil, fmt.Errorf("%w: refresh_token grant requires a stored refresh token", ErrInvalidGrant)
		}
		data.Set("refresh_token", refreshToken)
	}

	if grant.ClientID != "" {
		data.Set("client_id", grant.ClientID)
	}
	if grant.ClientSecret != "" {
		data.Set("client_secret", grant.ClientSecret)
	}
	if grant.Scope != "" {
		data.Set("scope", grant.Scope)
	}
	if grant.Audience != "" {
		data.Set("audience", grant.Audience)
	}

	return data, nil
}

// computeExpiresAt resolves the entry expiry: expires_in from the endpoint
// wins, then the JWT exp claim, then the configured fallback, then one
// minute.
func computeExpiresAt(tokenString string, expiresIn, fallbackSeconds int, now time.Time) time.Time {
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}

	if fallbackSeconds > 0 {
		return now.Add(time.Duration(fallbackSeconds) * time.Second)
	}
	return now.Add(time.Minute)
}

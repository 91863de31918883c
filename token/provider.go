package token

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Provider is the configuration-driven facade over Manager: it resolves
// the default issuer and offers warm-up of all configured tokens.
type Provider struct {
	mgr         *Manager
	defaultName string
}

// NewProvider creates a Provider from a validated configuration.
func NewProvider(cfg ManagerConfig) (*Provider, error) {
	mgr, err := NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return &Provider{mgr: mgr, defaultName: cfg.Config.DefaultIssuer()}, nil
}

// NewProviderFromFile loads a YAML or JSON configuration file and creates
// a Provider with default manager settings.
func NewProviderFromFile(path string) (*Provider, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewProvider(ManagerConfig{Config: cfg})
}

// Manager exposes the underlying Manager.
func (p *Provider) Manager() *Manager { return p.mgr }

// Names returns the configured issuer names, sorted.
func (p *Provider) Names() []string { return p.mgr.cfg.Names() }

// DefaultIssuer returns the issuer used when a caller does not name one.
func (p *Provider) DefaultIssuer() string { return p.defaultName }

// TokenOption adjusts a Token call.
type TokenOption func(*tokenOpts)

type tokenOpts struct {
	typ          Type
	forceRefresh bool
}

// WithType requests a token type other than access.
func WithType(typ Type) TokenOption {
	return func(o *tokenOpts) { o.typ = typ }
}

// WithForceRefresh bypasses the cache read and fetches anew.
func WithForceRefresh() TokenOption {
	return func(o *tokenOpts) { o.forceRefresh = true }
}

// Token returns a token entry for the named issuer; an empty name selects
// the default issuer.
func (p *Provider) Token(ctx context.Context, name string, opts ...TokenOption) (*Entry, error) {
	o := tokenOpts{typ: TypeAccess}
	for _, opt := range opts {
		opt(&o)
	}
	if name == "" {
		name = p.defaultName
	}
	return p.mgr.Token(ctx, name, o.typ, o.forceRefresh)
}

// AccessToken returns the raw access token string for the named issuer.
func (p *Provider) AccessToken(ctx context.Context, name string) (string, error) {
	e, err := p.Token(ctx, name)
	if err != nil {
		return "", err
	}
	return e.Token, nil
}

// Warm fetches access tokens for every enabled issuer concurrently, so the
// first real callers hit a warm cache. It fails on the first issuer that
// cannot be fetched.
func (p *Provider) Warm(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range p.Names() {
		if !p.mgr.cfg.Issuers[name].enabled() {
			continue
		}
		name := name
		g.Go(func() error {
			_, err := p.mgr.Token(ctx, name, TypeAccess, false)
			return err
		})
	}
	return g.Wait()
}

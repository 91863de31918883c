package token

import "errors"

// Sentinel errors for configuration and token acquisition.
var (
	ErrNoIssuers      = errors.New("token: no issuers configured")
	ErrUnknownIssuer  = errors.New("token: unknown issuer")
	ErrIssuerDisabled = errors.New("token: issuer is disabled")
	ErrMissingEnvVar  = errors.New("token: missing required environment variable")
	ErrInvalidGrant   = errors.New("token: grant configuration invalid")
	ErrEndpoint       = errors.New("token: token endpoint request failed")
	ErrNoToken        = errors.New("token: endpoint returned no token")
)

// Package token caches OAuth2 tokens fetched from configured token
// endpoints.
//
// Tokens are stored in a keyed expiring store whose time-to-use function
// reads the JWT exp claim, so an entry is served only while the token it
// holds is still valid. Concurrent requests for the same (issuer, type)
// pair share one fetch.
package token

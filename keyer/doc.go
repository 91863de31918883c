// Package keyer derives deterministic cache keys from call arguments.
//
// A Signature captures a function's declared parameter names and defaults
// once, a Deriver binds positional and keyword arguments against it and
// hashes the included values into a stable key. Parameters can be excluded
// from the key by name or by position.
package keyer

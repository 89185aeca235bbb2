// Package manifest loads declarative files listing the users and repositories to reconcile.
//
// Manifests may be written as YAML, JSON, JSONC, or TOML. Every document is validated against an
// embedded JSON Schema before its resources are decoded into desired states.
package manifest

// Package credentials resolves secret declarations such as env:NAME and file:/path into their values.
package credentials

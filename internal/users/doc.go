// Package users exposes the `gogsctl user` command, which reconciles one Gogs account
// from command-line flags.
package users

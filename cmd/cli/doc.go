// Package cli constructs the gogsctl command-line interface. It wires the Cobra
// command hierarchy to the layered configuration loader, the structured logger,
// and the lazily opened Gogs session shared by the user, repo, and apply
// subcommands.
package cli

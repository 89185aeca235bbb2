// Package repositories exposes the `gogsctl repo` command, which reconciles one Gogs
// repository from command-line flags. Organization-wide defaults such as the owning
// group or the license template come from the tools.repo configuration section.
package repositories

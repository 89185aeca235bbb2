// Package apply exposes the `gogsctl apply` command, which reconciles every resource of a
// manifest file in declaration order and stops at the first failure.
package apply

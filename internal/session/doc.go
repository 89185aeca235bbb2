// Package session assembles the collaborators of one CLI invocation: the authenticated
// Gogs API client, the reconciliation service, the result reporter, and the request metrics.
//
// Secrets and key material declared by reference are resolved here, before a
// declaration reaches the reconciliation engine.
package session

// Package reconcile converges Gogs users and repositories towards their declared state.
//
// A run validates the declaration, reads the current remote state, and then
// either deletes the resource or walks the fixed present-branch sequence:
// create, attribute sync, key sync, mirror sync. Each step issues at most the
// calls it needs and appends to the run's ChangeSet. The first unexpected
// response aborts the run without rolling back earlier steps, so callers
// recover by running the same declaration again.
//
// Reporter renders run results for automation (JSON lines) or for people.
package reconcile

// Package desired models the declared target state of Gogs users and repositories.
//
// UserState and RepositoryState are immutable records supplied by the caller.
// Optional booleans are pointers so an unset value is distinguishable from
// false. The validation functions enforce cross-field constraints before any
// network call is made.
package desired

// Package gogstest runs an in-process fake of the Gogs REST API for tests.
//
// The fake keeps users, repositories, and keys in memory, records every
// request it receives, and can be told to answer a given method and path with
// a fixed status. Like the real server, it does not report passwords or
// administrative flags when a user is read.
package gogstest

// Package ui provides helpers for formatting human-readable console output.
//
// The helpers translate Gogs API request events into concise messages so that
// reconciliation feedback stays readable for CLI users while detailed telemetry
// continues to flow through structured loggers.
package ui

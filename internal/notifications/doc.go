// Package notifications delivers download events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never check whether notifications are enabled. The download
// manager announces submissions; the task watcher announces completions and
// failures.
package notifications

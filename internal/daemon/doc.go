// Package daemon coordinates the long-running mikanarr process.
//
// Build wires configuration, the sqlite store, the feed sources, the filter
// gate, the extractor, the Alist client, the download manager and the task
// watcher into a Pipeline. Daemon then runs that pipeline under a
// flock-based lock that prevents two instances from submitting the same
// titles, and optionally serves a read-only status API.
//
// Keep orchestration logic here: extraction, submission and renaming live in
// their own packages while the daemon focuses on startup, shutdown and
// lifecycle.
package daemon

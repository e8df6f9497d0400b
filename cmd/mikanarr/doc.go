// Package main hosts the mikanarr CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground, inspects
// and maintains the sqlite store (task records and seen titles), talks to
// Alist for remote task control, previews feed cycles and title extraction,
// tails daemon logs, and scaffolds configuration. Configuration resolution
// happens once in commandContext so subcommands can focus on output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main

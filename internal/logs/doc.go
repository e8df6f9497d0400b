// Package logs reads the daemon's log files for the CLI.
//
// Tail returns the last lines of a file together with the byte offset that
// Follow resumes from. Follow polls until its context is canceled, so
// `mikanarr logs --follow` stops cleanly on interrupt. Filter narrows lines
// to a component or minimum level for both the JSON and console formats.
package logs

// Package preflight provides readiness checks for the external services
// and filesystem paths mikanarr depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before it starts polling feeds and refuses to
//     start when the data directory or Alist check fails.
//   - The CLI "mikanarr check" command prints every result, including the
//     per-feed reachability checks.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight

// Package monitor runs the feed poll cycle.
//
// A cycle fetches every source concurrently, then walks the entries in
// source order through the filter gate, the dedup store and a within-cycle
// title set, resolves metadata for the survivors through the extractor and
// hands the batch to the sink. A failing source or entry is logged and
// skipped; it never aborts the cycle.
//
// Run repeats cycles until the context ends, sleeping the full interval
// after each one.
package monitor

// Package extractor resolves structured metadata from release titles.
//
// An Extractor wraps a primary Backend (regex or llm) behind two bounded
// caches, one per extraction kind. Concurrent requests for the same key share
// a single backend call. A backend answer of "not found" is cached as the
// Unknown sentinel so a title that cannot be resolved is not retried every
// poll; any other failure is returned to the caller and left uncached.
//
// Series-name analysis always runs through the regex backend, whichever
// primary is configured, because model answers for bare series names proved
// unstable.
package extractor

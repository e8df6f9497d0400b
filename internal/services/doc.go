// Package services defines shared utilities consumed by the acquisition
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp poll-cycle correlation IDs and feed source
//     names for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into transport, application, not-found, and configuration kinds.
//
// Use these helpers when wiring new pipeline components so error handling and
// observability stay uniform.
package services

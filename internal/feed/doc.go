// Package feed turns subscribed RSS URLs into release entries.
//
// A Source fetches and parses one feed (Entries) and builds the base
// ResourceInfo for an entry (Enrich). NewSource picks the implementation
// from the feed host: Mikan feeds scrape the bangumi homepage for the
// authoritative series name and fansub, every other feed falls back to
// guessing both from the release title.
//
// Structured metadata (season, episode, quality...) is not resolved here;
// the monitor runs the extractor over the base info.
package feed

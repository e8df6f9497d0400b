// Package tmdb provides the minimal TMDB API client used by the llm
// extraction backend to canonicalize series names.
//
// Only TV search is exposed. A search that matches nothing, or an endpoint
// answering 404, is reported as ErrNotFound so the extractor can cache the
// unknown result instead of retrying the same title every cycle.
package tmdb

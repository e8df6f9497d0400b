package preflight

import (
	"context"

	"mikanarr/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Required bool
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	data := CheckDirectoryAccess("Data directory", cfg.Paths.DataDir)
	data.Required = true
	results = append(results, data)

	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	remote := CheckAlist(ctx, cfg)
	remote.Required = true
	results = append(results, remote)

	// LLM extraction backend
	if cfg.Extractor.Enabled && cfg.Extractor.Mode == config.ExtractorModeLLM {
		results = append(results, CheckLLM(ctx, "Extractor LLM", cfg.GetLLM()))
		if cfg.Extractor.UseLookup {
			results = append(results, CheckTMDB(ctx, cfg.TMDB))
		}
	}

	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Required && !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

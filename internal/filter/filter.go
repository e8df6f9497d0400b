// Package filter decides which feed titles are worth downloading.
//
// A Gate combines include patterns, all of which must match, with exclude
// patterns, none of which may match. Matching is case-insensitive and runs on
// the width-normalized title.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"mikanarr/internal/textutil"
)

// Gate reports whether a title passes the configured filters.
type Gate interface {
	Allow(title string) bool
}

type preset struct {
	include string
	exclude string
}

// Presets are the built-in named filters.
var presets = map[string]preset{
	"1080p": {include: `(X1080|1080P)`},
	"简体":    {include: `(简体|简中|简日|CHS)`},
	"繁体":    {include: `(繁体|繁中|繁日|CHT|Baha)`},
	"非合集":   {exclude: `\d{2}-\d{2}|合集`},
}

// PresetNames lists the built-in preset names.
func PresetNames() []string {
	return []string{"1080p", "简体", "繁体", "非合集"}
}

// RegexGate is a Gate built from regular expressions.
type RegexGate struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

var _ Gate = (*RegexGate)(nil)

// New compiles a gate from preset names, custom include patterns and custom
// exclude patterns. An empty gate allows every title.
func New(presetNames, includes, excludes []string) (*RegexGate, error) {
	gate := &RegexGate{}
	for _, name := range presetNames {
		name = strings.TrimSpace(name)
		p, ok := presets[name]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q (want one of %s)", name, strings.Join(PresetNames(), ", "))
		}
		if p.include != "" {
			includes = append([]string{p.include}, includes...)
		}
		if p.exclude != "" {
			excludes = append([]string{p.exclude}, excludes...)
		}
	}
	var err error
	if gate.include, err = compileAll(includes); err != nil {
		return nil, err
	}
	if gate.exclude, err = compileAll(excludes); err != nil {
		return nil, err
	}
	return gate, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Allow reports whether title matches every include and no exclude pattern.
func (g *RegexGate) Allow(title string) bool {
	if g == nil {
		return true
	}
	title = textutil.Normalize(title)
	for _, re := range g.include {
		if !re.MatchString(title) {
			return false
		}
	}
	for _, re := range g.exclude {
		if re.MatchString(title) {
			return false
		}
	}
	return true
}

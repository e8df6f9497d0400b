package logs

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Filter selects log lines by component and minimum level. The zero value
// matches everything.
type Filter struct {
	Component string
	MinLevel  slog.Level
	hasLevel  bool
}

// NewFilter builds a filter. An empty level matches all levels.
func NewFilter(component, level string) (Filter, error) {
	f := Filter{Component: strings.TrimSpace(component)}
	if level = strings.TrimSpace(level); level != "" {
		if err := f.MinLevel.UnmarshalText([]byte(level)); err != nil {
			return Filter{}, err
		}
		f.hasLevel = true
	}
	return f, nil
}

// Match reports whether line passes the filter. Lines that cannot be parsed
// (stack traces, stray output) pass only an empty filter.
func (f Filter) Match(line string) bool {
	if f.Component == "" && !f.hasLevel {
		return true
	}
	level, component, ok := parseLine(line)
	if !ok {
		return false
	}
	if f.Component != "" && !strings.EqualFold(component, f.Component) {
		return false
	}
	return !f.hasLevel || level >= f.MinLevel
}

// parseLine understands both handler formats: JSON objects carrying level and
// component keys, and console lines shaped "<time> <LEVEL> <component>: msg".
func parseLine(line string) (slog.Level, string, bool) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var record struct {
			Level     string `json:"level"`
			Component string `json:"component"`
		}
		if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
			return 0, "", false
		}
		var level slog.Level
		if err := level.UnmarshalText([]byte(record.Level)); err != nil {
			return 0, "", false
		}
		return level, record.Component, true
	}

	fields := strings.SplitN(trimmed, " ", 4)
	if len(fields) < 3 {
		return 0, "", false
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(fields[1])); err != nil {
		return 0, "", false
	}
	var component string
	if name, ok := strings.CutSuffix(fields[2], ":"); ok {
		component = name
	}
	return level, component, true
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// statusKind is the bracketed verdict printed after a check label.
type statusKind struct {
	label  string
	colors text.Colors
}

var (
	statusInfo  = statusKind{label: "INFO", colors: text.Colors{text.FgBlue}}
	statusOK    = statusKind{label: "OK", colors: text.Colors{text.FgGreen}}
	statusWarn  = statusKind{label: "WARN", colors: text.Colors{text.FgYellow}}
	statusError = statusKind{label: "ERROR", colors: text.Colors{text.FgRed}}
)

const statusLabelWidth = 24

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	verdict := "[" + kind.label + "]"
	if message != "" {
		verdict += " " + message
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", verdict)
	if colorize {
		return kind.colors.Sprint(line)
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	lines := []string{heading, strings.Repeat("-", len(heading))}
	if colorize {
		for i := range lines {
			lines[i] = statusInfo.colors.Sprint(lines[i])
		}
	}
	return lines
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

package renamer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mikanarr/internal/services"
)

var placeholderPattern = regexp.MustCompile(`\{(\w+)(?::(0?)(\d*)d)?\}`)

var numericFields = map[string]bool{"season": true, "episode": true}

var textFields = map[string]bool{"name": true, "fansub": true, "quality": true, "language": true}

// fields holds the values substituted into a format.
type fields struct {
	name     string
	season   int
	episode  int
	fansub   string
	quality  string
	language string
}

// ValidateFormat reports unknown placeholders and width specs on text fields.
func ValidateFormat(format string) error {
	if strings.TrimSpace(format) == "" {
		return services.Wrap(services.ErrConfiguration, "renamer", "format", "empty format", nil)
	}
	for _, match := range placeholderPattern.FindAllStringSubmatch(format, -1) {
		field := match[1]
		hasSpec := strings.Contains(match[0], ":")
		switch {
		case numericFields[field]:
		case textFields[field] && !hasSpec:
		case textFields[field]:
			return services.Wrap(services.ErrConfiguration, "renamer", "format", fmt.Sprintf("placeholder %s does not take a width", match[0]), nil)
		default:
			return services.Wrap(services.ErrConfiguration, "renamer", "format", fmt.Sprintf("unknown placeholder %s", match[0]), nil)
		}
	}
	return nil
}

func render(format string, f fields) string {
	return placeholderPattern.ReplaceAllStringFunc(format, func(token string) string {
		match := placeholderPattern.FindStringSubmatch(token)
		switch match[1] {
		case "name":
			return f.name
		case "fansub":
			return f.fansub
		case "quality":
			return f.quality
		case "language":
			return f.language
		case "season":
			return formatNumber(f.season, match[2], match[3])
		case "episode":
			return formatNumber(f.episode, match[2], match[3])
		default:
			return token
		}
	})
}

func formatNumber(value int, zero, width string) string {
	n, err := strconv.Atoi(width)
	if err != nil || n <= 0 {
		return strconv.Itoa(value)
	}
	if zero == "0" {
		return fmt.Sprintf("%0*d", n, value)
	}
	return fmt.Sprintf("%*d", n, value)
}

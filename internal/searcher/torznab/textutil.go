package torznab

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// Some indexers emit HTML-escaped or markup-laden titles; cleanHTMLText
// strips both before the title is used as a TorrentCandidate.Title,
// grounded on the teacher's internal/providers/common/parse.go.teacher
// CleanHTMLText.
var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func cleanHTMLText(raw string) string {
	value := strings.TrimSpace(raw)
	value = html.UnescapeString(value)
	value = htmlTagPattern.ReplaceAllString(value, " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

// parseHumanSize parses a human-readable size ("1.5 GB") into bytes, the
// fallback when an indexer's size attribute isn't a raw byte count.
// Grounded on the teacher's ParseHumanSize, minus the Cyrillic unit
// aliases (no RuTracker-specific indexer is configured by this daemon).
func parseHumanSize(raw string) int64 {
	value := strings.TrimSpace(strings.ToUpper(raw))
	if value == "" {
		return 0
	}

	unit := ""
	number := value
	for _, suffix := range []string{"TB", "GB", "MB", "KB", "B"} {
		if strings.HasSuffix(number, suffix) {
			unit = suffix
			number = strings.TrimSpace(strings.TrimSuffix(number, suffix))
			break
		}
	}
	if unit == "" {
		if parsed, err := strconv.ParseInt(number, 10, 64); err == nil {
			return parsed
		}
		return 0
	}

	parsed, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", "."), 64)
	if err != nil || parsed < 0 {
		return 0
	}

	multiplier := float64(1)
	switch unit {
	case "KB":
		multiplier = 1024
	case "MB":
		multiplier = 1024 * 1024
	case "GB":
		multiplier = 1024 * 1024 * 1024
	case "TB":
		multiplier = 1024 * 1024 * 1024 * 1024
	}
	return int64(parsed * multiplier)
}

package flatpak

import (
	"regexp"
	"strconv"
	"strings"
)

var percentPattern = regexp.MustCompile(`(\d{1,3})%`)

// parseProgress extracts a percentage from flatpak CLI output lines such as
// "Installing 1/2… 45%  1.2 MB/s" or ostree pull progress. Lines without a
// percentage are ignored; progress is advisory only.
func parseProgress(line string) (ProgressUpdate, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ProgressUpdate{}, false
	}

	matches := percentPattern.FindAllStringSubmatch(trimmed, -1)
	if len(matches) == 0 {
		return ProgressUpdate{}, false
	}
	raw := matches[len(matches)-1][1]
	percent, err := strconv.ParseFloat(raw, 64)
	if err != nil || percent < 0 || percent > 100 {
		return ProgressUpdate{}, false
	}
	return ProgressUpdate{Percent: percent, Message: trimmed}, true
}

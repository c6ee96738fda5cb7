package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"voicerack/internal/api"
)

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func humanSize(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

// matchVoice applies the list command's filters. Language matches either the
// raw tag or the human-readable name, case-insensitively.
func matchVoice(voice api.Voice, language, provider, search string) bool {
	if provider != "" && !strings.EqualFold(voice.ProviderRef, provider) {
		return false
	}
	if language != "" {
		if !containsFold(voice.Languages, language) && !containsFold(voice.LanguageNames, language) {
			return false
		}
	}
	if search != "" {
		needle := strings.ToLower(search)
		haystack := strings.ToLower(voice.Name + " " + voice.Summary + " " + voice.Ref)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func containsFold(values []string, needle string) bool {
	needle = strings.ToLower(needle)
	for _, value := range values {
		if strings.Contains(strings.ToLower(value), needle) {
			return true
		}
	}
	return false
}

func isInteractive(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

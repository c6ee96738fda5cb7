package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var languageNamer = display.English.Tags()

// DisplayNames renders language tags as deduplicated, sorted display names,
// keeping regional qualifiers ("American English").
func DisplayNames(tags []string) []string {
	return renderNames(tags, false)
}

// BaseNames renders language tags as deduplicated, sorted base-language
// names, dropping regional qualifiers ("English").
func BaseNames(tags []string) []string {
	return renderNames(tags, true)
}

func renderNames(tags []string, baseOnly bool) []string {
	seen := make(map[string]struct{}, len(tags))
	names := make([]string, 0, len(tags))
	for _, raw := range tags {
		raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")
		if raw == "" {
			continue
		}
		tag, err := language.Parse(raw)
		if err != nil {
			continue
		}
		if baseOnly {
			base, confidence := tag.Base()
			if confidence == language.No {
				continue
			}
			tag = language.MustParse(base.String())
		}
		name := languageNamer.Name(tag)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

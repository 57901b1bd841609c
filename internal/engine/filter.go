package engine

import (
	"path"
	"strings"

	"trendscout/internal/records"
)

// FilterRecords keeps records whose language is in languages and whose
// OWNER/NAME matches none of the exclude patterns. An empty language set
// passes every language; a record without a language never matches a
// non-empty set. The input slice is not modified.
func FilterRecords(recs []records.RepositoryRecord, languages, exclude []string) []records.RepositoryRecord {
	targets := languageSet(languages)

	out := make([]records.RepositoryRecord, 0, len(recs))
	for _, r := range recs {
		if len(targets) > 0 {
			lang := normalizeLanguage(r.Language)
			if lang == "" {
				continue
			}
			if _, ok := targets[lang]; !ok {
				continue
			}
		}
		if matchesAnyPattern(exclude, r.FullName(), r.Name) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func languageSet(languages []string) map[string]struct{} {
	set := make(map[string]struct{}, len(languages))
	for _, l := range languages {
		if l = normalizeLanguage(l); l != "" {
			set[l] = struct{}{}
		}
	}
	return set
}

func normalizeLanguage(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func matchesAnyPattern(patterns []string, fullName, repoName string) bool {
	for _, p := range patterns {
		if matchPattern(p, fullName, repoName) {
			return true
		}
	}
	return false
}

// matchPattern uses path.Match. Patterns containing '/' match OWNER/NAME,
// anything else matches the repository name alone.
func matchPattern(pattern, fullName, repoName string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	if strings.Contains(pattern, "/") {
		matched, _ := path.Match(pattern, strings.ToLower(fullName))
		return matched
	}
	matched, _ := path.Match(pattern, strings.ToLower(repoName))
	return matched
}

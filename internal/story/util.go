package story

import "strings"

// lowerTrim is the canonical dedup key used across merge invariants:
// list fields deduplicate by lower-cased, trimmed string.
func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

package extract

import (
	"sort"
	"strings"
)

// Strings walks a decoded JSON document depth-first and collects every
// string leaf. Map keys are visited in sorted order so the result is
// deterministic regardless of decode order.
func Strings(doc any) []string {
	var out []string
	walkStrings(doc, &out)
	return out
}

func walkStrings(node any, out *[]string) {
	switch v := node.(type) {
	case string:
		*out = append(*out, v)
	case []any:
		for _, item := range v {
			walkStrings(item, out)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkStrings(v[k], out)
		}
	}
}

// Clean collapses internal whitespace and trims list markers from a value
// lifted out of a CV field.
func Clean(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, "•- \t\r\n")
}

// Uniq deduplicates case-insensitively while preserving first-seen order
// and original casing.
func Uniq(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		key := strings.ToLower(item)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

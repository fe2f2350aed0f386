package extract

import (
	"regexp"
	"sort"
	"strings"
)

var digitsOnlyRe = regexp.MustCompile(`^\d+$`)

// itemSections are CV sections whose entries may carry their own skill
// lists alongside free text.
var itemSections = []string{
	"projects", "experience", "education",
	"certifications", "awards", "volunteering", "publications",
}

// skillKeys are the per-entry field names that hold skill lists.
var skillKeys = []string{"skills", "tech", "technologies", "stack", "keywords"}

// Skills lifts the candidate's skill names out of the CV without calling a
// model. It reads the structured skills object, the flat keyword list, and
// per-entry skill fields in the experience-style sections, then cleans and
// deduplicates the result.
func Skills(cv map[string]any) []string {
	var skills []string

	if obj, ok := cv["skills"].(map[string]any); ok {
		keys := sortedKeys(obj)
		for _, k := range keys {
			if list, ok := obj[k].([]any); ok {
				for _, x := range list {
					if s, ok := x.(string); ok {
						skills = append(skills, s)
					}
				}
			}
		}
	}

	if list, ok := cv["keywords"].([]any); ok {
		for _, x := range list {
			if s, ok := x.(string); ok {
				skills = append(skills, s)
			}
		}
	}

	for _, section := range itemSections {
		arr, ok := cv[section].([]any)
		if !ok {
			continue
		}
		for _, item := range arr {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for _, key := range skillKeys {
				switch v := entry[key].(type) {
				case []any:
					for _, x := range v {
						if s, ok := x.(string); ok {
							skills = append(skills, s)
						}
					}
				case string:
					for _, p := range strings.Split(v, ",") {
						skills = append(skills, strings.TrimSpace(p))
					}
				}
			}
		}
	}

	var out []string
	for _, s := range skills {
		s = Clean(s)
		if s == "" || digitsOnlyRe.MatchString(s) {
			continue
		}
		out = append(out, s)
	}
	return Uniq(out)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

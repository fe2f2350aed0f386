package extract

import (
	"regexp"
	"strings"
)

var (
	usernameRe = regexp.MustCompile(`github\.com/([^/\s)\]]+)`)
	repoURLRe  = regexp.MustCompile(`github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)`)
	rawURLRe   = regexp.MustCompile(`raw\.githubusercontent\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)`)
	bareSlugRe = regexp.MustCompile(`\b([A-Za-z0-9_.-]{1,39})/([A-Za-z0-9_.-]+)\b`)
)

// slugContextWords gate bare owner/repo matches. A plain "TCP/IP" or
// "CI/CD" in running text must not become a repository reference.
var slugContextWords = []string{"repo", "repository", "github", "project", "source", "code", "link"}

// Username returns the GitHub account name referenced by the CV, taken
// from the first profile or repository URL found anywhere in the document.
func Username(doc any) string {
	for _, s := range Strings(doc) {
		if !strings.Contains(strings.ToLower(s), "github") {
			continue
		}
		if m := usernameRe.FindStringSubmatch(s); m != nil {
			return cleanSegment(m[1])
		}
	}
	return ""
}

// ReferencedRepos returns every owner/repo slug the CV points at, in
// normalized lowercase form, deduplicated in first-seen order.
func ReferencedRepos(doc any) []string {
	var found []string
	for _, s := range Strings(doc) {
		for _, m := range repoURLRe.FindAllStringSubmatch(s, -1) {
			if slug := NormalizeRepo(m[1], m[2]); slug != "" {
				found = append(found, slug)
			}
		}
		for _, m := range rawURLRe.FindAllStringSubmatch(s, -1) {
			if slug := NormalizeRepo(m[1], m[2]); slug != "" {
				found = append(found, slug)
			}
		}
		if hasSlugContext(s) && !strings.Contains(s, "github.com") && !strings.Contains(s, "githubusercontent.com") {
			for _, m := range bareSlugRe.FindAllStringSubmatch(s, -1) {
				if slug := NormalizeRepo(m[1], m[2]); slug != "" {
					found = append(found, slug)
				}
			}
		}
	}
	return Uniq(found)
}

func hasSlugContext(s string) bool {
	low := strings.ToLower(s)
	for _, w := range slugContextWords {
		if strings.Contains(low, w) {
			return true
		}
	}
	return false
}

// NormalizeRepo lowercases an owner/repo pair and strips the clone suffix,
// query strings, fragments, and trailing punctuation. An empty string means
// the pair is not a plausible repository reference.
func NormalizeRepo(owner, repo string) string {
	owner = cleanSegment(owner)
	repo = cleanSegment(repo)
	repo = strings.TrimSuffix(repo, ".git")
	if owner == "" || repo == "" {
		return ""
	}
	return strings.ToLower(owner) + "/" + strings.ToLower(repo)
}

func cleanSegment(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, ".,;:)]}\"'")
}

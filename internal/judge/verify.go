package judge

import (
	"fmt"
	"strings"

	"github.com/repovet/repovet/internal/model"
)

const (
	maxExcerptLen   = 220
	maxReasoningLen = 260
)

// Snippet is one evidence candidate offered to the oracle. Lines is the
// human-readable span the oracle must echo back when citing.
type Snippet struct {
	Repo    string `json:"repo"`
	File    string `json:"file"`
	Lines   string `json:"lines"`
	Snippet string `json:"snippet"`
}

// Lookup maps "repo|file|lines" keys to the full untruncated chunk text.
// Citations are verified against the full text, so an excerpt taken from a
// snippet that was truncated for the prompt still verifies.
type Lookup map[string]string

func lookupKey(repo, file, lines string) string {
	return repo + "|" + file + "|" + lines
}

// BuildSnippets prepares oracle-facing snippets and the verification
// lookup for one set of chunks. Texts longer than cap are truncated with a
// visible marker so the oracle knows it saw a prefix.
func BuildSnippets(chunks []model.Chunk, capBytes int) ([]Snippet, Lookup) {
	snippets := make([]Snippet, 0, len(chunks))
	lookup := make(Lookup, len(chunks))

	for _, c := range chunks {
		lines := c.LineRef()
		text := c.Text
		if len(text) > capBytes {
			text = text[:capBytes] + "\n…"
		}
		snippets = append(snippets, Snippet{
			Repo:    c.Repo,
			File:    c.File,
			Lines:   lines,
			Snippet: text,
		})
		lookup[lookupKey(c.Repo, c.File, lines)] = c.Text
	}
	return snippets, lookup
}

// ParseEvidence lifts evidence items out of a decoded oracle response.
// Anything that is not a list of objects yields nothing; at most max items
// are taken. A missing repo falls back to defaultRepo.
func ParseEvidence(raw any, defaultRepo string, max int) []model.Evidence {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	var out []model.Evidence
	for _, item := range list {
		if len(out) >= max {
			break
		}
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		repo := stringField(obj, "repo")
		if repo == "" {
			repo = defaultRepo
		}
		out = append(out, model.Evidence{
			Repo:      repo,
			File:      stringField(obj, "file"),
			Lines:     stringField(obj, "lines"),
			Excerpt:   stringField(obj, "excerpt"),
			Reasoning: stringField(obj, "reasoning"),
		})
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	if v, ok := obj[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// VerifyEvidence keeps only citations that point at an offered snippet and
// whose excerpt appears verbatim in that snippet's full text. Everything
// else is silently dropped; the oracle's claims about code it was not
// shown, or text it paraphrased, never reach a report.
func VerifyEvidence(items []model.Evidence, lookup Lookup) []model.Evidence {
	var verified []model.Evidence
	for _, it := range items {
		repo := strings.TrimSpace(it.Repo)
		file := strings.TrimSpace(it.File)
		lines := strings.TrimSpace(it.Lines)
		excerpt := strings.TrimSpace(it.Excerpt)
		if repo == "" || file == "" || lines == "" || excerpt == "" {
			continue
		}
		text, ok := lookup[lookupKey(repo, file, lines)]
		if !ok || text == "" {
			continue
		}
		if !strings.Contains(text, excerpt) {
			continue
		}
		it.Repo = repo
		it.File = file
		it.Lines = lines
		it.Excerpt = truncate(excerpt, maxExcerptLen)
		it.Reasoning = truncate(it.Reasoning, maxReasoningLen)
		verified = append(verified, it)
	}
	return verified
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Float reads a numeric field from a decoded oracle response, falling back
// when absent or non-numeric.
func Float(obj map[string]any, key string, fallback float64) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

// Bool reads a boolean field from a decoded oracle response.
func Bool(obj map[string]any, key string) bool {
	b, _ := obj[key].(bool)
	return b
}

// String reads a string field from a decoded oracle response.
func String(obj map[string]any, key, fallback string) string {
	if s, ok := obj[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// Strings reads a list of strings, keeping at most max entries and
// stringifying non-string members.
func Strings(obj map[string]any, key string, max int) []string {
	list, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		if len(out) >= max {
			break
		}
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}

package model

// Evidence is a citation produced by the reasoning oracle: a claimed verbatim
// excerpt from one offered snippet. Evidence is provisional until it passes
// the verification gate; only verified evidence may appear in output.
type Evidence struct {
	Repo      string `json:"repo"`
	File      string `json:"file"`
	Lines     string `json:"lines"` // "L10-L22", must match an offered snippet
	Excerpt   string `json:"excerpt"`
	Reasoning string `json:"reasoning,omitempty"`
}

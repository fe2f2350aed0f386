package model

import "fmt"

// Chunk is a contiguous line range of one file inside one repository, the
// atomic unit of retrieval. Text is always a verbatim slice of the decoded
// file content; evidence verification depends on that.
type Chunk struct {
	ID        string `json:"id"`
	Repo      string `json:"repo"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Text      string `json:"text"`
}

// LineRef formats the chunk's line range the way it is presented to the
// oracle and cited back in evidence, e.g. "L10-L22".
func (c *Chunk) LineRef() string {
	return fmt.Sprintf("L%d-L%d", c.StartLine, c.EndLine)
}

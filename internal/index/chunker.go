package index

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/repovet/repovet/internal/model"
)

// ChunkParams bounds how much of one repository archive becomes chunks.
// MaxChunks is the remaining run-wide budget, not a per-repo constant.
type ChunkParams struct {
	MaxFiles     int
	MaxFileBytes int
	MaxBytes     int
	MaxChunks    int
	MaxLines     int
	Overlap      int
}

var allowedExts = map[string]bool{
	".py": true, ".ipynb": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".cpp": true, ".c": true, ".h": true, ".hpp": true,
	".go": true, ".rs": true, ".cs": true,
	".sql":  true,
	".md":   true, ".toml": true, ".yml": true, ".yaml": true, ".json": true,
}

var skipDirs = []string{".git", "node_modules", ".venv", "venv", "dist", "build", "__pycache__"}

// keepPath decides whether a repo-relative path contributes evidence.
// Vendored and generated trees are rejected at any depth, including the
// top level.
func keepPath(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	probe := "/" + p
	for _, d := range skipDirs {
		if strings.Contains(probe, "/"+d+"/") {
			return false
		}
	}
	return allowedExts[strings.ToLower(path.Ext(p))]
}

// notebookText flattens a Jupyter notebook into plain text, joining cell
// sources with blank lines. Unparseable notebooks pass through as raw text.
func notebookText(raw string) string {
	var nb struct {
		Cells []struct {
			Source json.RawMessage `json:"source"`
		} `json:"cells"`
	}
	if err := json.Unmarshal([]byte(raw), &nb); err != nil {
		return raw
	}
	parts := make([]string, 0, len(nb.Cells))
	for _, c := range nb.Cells {
		var list []string
		if err := json.Unmarshal(c.Source, &list); err == nil {
			parts = append(parts, strings.Join(list, ""))
			continue
		}
		var s string
		if err := json.Unmarshal(c.Source, &s); err == nil {
			parts = append(parts, s)
			continue
		}
		parts = append(parts, "")
	}
	return strings.Join(parts, "\n\n")
}

// splitLines splits on line terminators without producing a phantom empty
// line after a trailing newline.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// window describes one chunk's line span within a file.
type window struct {
	start, end int
	text       string
}

// chunkLines slices a file into overlapping line windows. Consecutive
// windows share overlap lines so no construct is cut invisibly at a
// boundary; every window is a verbatim slice of the file.
func chunkLines(text string, maxLines, overlap int) []window {
	lines := splitLines(text)
	n := len(lines)
	var out []window

	i := 0
	for i < n {
		j := i + maxLines
		if j > n {
			j = n
		}
		out = append(out, window{
			start: i + 1,
			end:   j,
			text:  strings.Join(lines[i:j], "\n"),
		})
		if j == n {
			break
		}
		i = j - overlap
		if i < 0 {
			i = 0
		}
	}
	return out
}

// BuildChunks turns one repository zipball into evidence chunks. The
// archive's single top-level wrapper directory is stripped so paths read as
// repo-relative. An unreadable archive is an error so the caller can count
// it; budget exhaustion is not.
func BuildChunks(zipBytes []byte, repoFull string, p ChunkParams) ([]model.Chunk, error) {
	z, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("open archive for %s: %w", repoFull, err)
	}

	var chunks []model.Chunk
	totalBytes := 0
	filesSeen := 0
	localID := 0

	for _, f := range z.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if filesSeen >= p.MaxFiles {
			break
		}
		if int(f.UncompressedSize64) > p.MaxFileBytes {
			continue
		}

		// zipballs wrap everything in owner-repo-sha/
		rel := f.Name
		if idx := strings.Index(rel, "/"); idx >= 0 {
			rel = rel[idx+1:]
		} else {
			rel = ""
		}
		if rel == "" || !keepPath(rel) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		totalBytes += len(raw)
		if totalBytes > p.MaxBytes {
			break
		}

		text := string(raw)
		if strings.HasSuffix(strings.ToLower(rel), ".ipynb") {
			text = notebookText(text)
		}

		for _, w := range chunkLines(text, p.MaxLines, p.Overlap) {
			if strings.TrimSpace(w.text) == "" {
				continue
			}
			chunks = append(chunks, model.Chunk{
				ID:        fmt.Sprintf("%s:%s:%d-%d:%d", repoFull, rel, w.start, w.end, localID),
				Repo:      repoFull,
				File:      rel,
				StartLine: w.start,
				EndLine:   w.end,
				Text:      w.text,
			})
			localID++
			if len(chunks) >= p.MaxChunks {
				return chunks, nil
			}
		}

		filesSeen++
	}

	return chunks, nil
}

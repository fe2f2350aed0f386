package index

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func defaultParams() ChunkParams {
	return ChunkParams{
		MaxFiles:     140,
		MaxFileBytes: 900_000,
		MaxBytes:     6_000_000,
		MaxChunks:    6500,
		MaxLines:     140,
		Overlap:      25,
	}
}

func numberedLines(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	return sb.String()
}

func TestChunkLinesWindows(t *testing.T) {
	windows := chunkLines(numberedLines(300), 140, 25)

	want := []struct{ start, end int }{
		{1, 140},
		{116, 255},
		{231, 300},
	}
	if len(windows) != len(want) {
		t.Fatalf("got %d windows, want %d", len(windows), len(want))
	}
	for i, w := range windows {
		if w.start != want[i].start || w.end != want[i].end {
			t.Errorf("window %d = [%d,%d], want [%d,%d]", i, w.start, w.end, want[i].start, want[i].end)
		}
	}
	if !strings.HasPrefix(windows[1].text, "line 116\n") || !strings.HasSuffix(windows[1].text, "line 255") {
		t.Errorf("window 1 boundaries wrong: %q ... %q", windows[1].text[:20], windows[1].text[len(windows[1].text)-10:])
	}
}

func TestChunkLinesShortFile(t *testing.T) {
	windows := chunkLines("a\nb\nc\n", 140, 25)
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	if windows[0].start != 1 || windows[0].end != 3 || windows[0].text != "a\nb\nc" {
		t.Errorf("window = [%d,%d] %q", windows[0].start, windows[0].end, windows[0].text)
	}
}

func TestBuildChunksVerbatim(t *testing.T) {
	content := numberedLines(300)
	data := makeZip(t, map[string]string{
		"owner-repo-abc123/main.go": content,
	})

	chunks, err := BuildChunks(data, "owner/repo", defaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	for _, c := range chunks {
		want := strings.Join(lines[c.StartLine-1:c.EndLine], "\n")
		if c.Text != want {
			t.Errorf("chunk %s is not a verbatim slice of the file", c.ID)
		}
		if c.Repo != "owner/repo" || c.File != "main.go" {
			t.Errorf("chunk identity = %s / %s", c.Repo, c.File)
		}
	}
}

func TestBuildChunksSkipsVendoredAndBinary(t *testing.T) {
	data := makeZip(t, map[string]string{
		"w/node_modules/lib/index.js": "var x = 1;\n",
		"w/a/node_modules/x.js":       "var y = 2;\n",
		"w/.git/config":               "[core]\n",
		"w/photo.png":                 "not code",
		"w/src/app.py":                "print('hi')\n",
	})

	chunks, err := BuildChunks(data, "o/r", defaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].File != "src/app.py" {
		t.Errorf("kept file = %s", chunks[0].File)
	}
}

func TestBuildChunksDropsWhitespaceOnly(t *testing.T) {
	data := makeZip(t, map[string]string{
		"w/empty.py": "\n\n   \n\t\n",
	})
	chunks, err := BuildChunks(data, "o/r", defaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Fatalf("got %d chunks, want 0", len(chunks))
	}
}

func TestBuildChunksBudget(t *testing.T) {
	p := defaultParams()
	p.MaxChunks = 2
	data := makeZip(t, map[string]string{
		"w/big.go": numberedLines(500),
	})

	chunks, err := BuildChunks(data, "o/r", p)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
}

func TestBuildChunksByteBudget(t *testing.T) {
	content := numberedLines(40)
	data := makeZip(t, map[string]string{
		"w/a.go": content,
		"w/b.go": content,
	})

	p := defaultParams()
	p.MaxBytes = len(content) + 10 // whichever file is read second blows the budget

	chunks, err := BuildChunks(data, "o/r", p)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks from the file within budget")
	}
	files := make(map[string]bool)
	for _, c := range chunks {
		files[c.File] = true
	}
	if len(files) != 1 {
		t.Errorf("got chunks from %d files, want 1 (budget must stop the walk)", len(files))
	}

	p.MaxBytes = 2*len(content) + 10
	chunks, err = BuildChunks(data, "o/r", p)
	if err != nil {
		t.Fatal(err)
	}
	files = make(map[string]bool)
	for _, c := range chunks {
		files[c.File] = true
	}
	if len(files) != 2 {
		t.Errorf("got chunks from %d files, want 2 when the budget fits both", len(files))
	}
}

func TestBuildChunksMaxFiles(t *testing.T) {
	p := defaultParams()
	p.MaxFiles = 1
	data := makeZip(t, map[string]string{
		"w/a.go": "package a\n",
		"w/b.go": "package b\n",
	})

	chunks, err := BuildChunks(data, "o/r", p)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestBuildChunksBadArchive(t *testing.T) {
	if _, err := BuildChunks([]byte("this is not a zip"), "o/r", defaultParams()); err == nil {
		t.Fatal("expected error for unreadable archive")
	}
}

func TestNotebookText(t *testing.T) {
	raw := `{"cells":[{"source":["import numpy\n","x = 1\n"]},{"source":"print(x)"}]}`
	got := notebookText(raw)
	want := "import numpy\nx = 1\n\n\nprint(x)"
	if got != want {
		t.Errorf("notebookText() = %q, want %q", got, want)
	}

	broken := "not json at all"
	if notebookText(broken) != broken {
		t.Error("unparseable notebook should pass through unchanged")
	}
}

func TestKeepPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"src/main.go", true},
		{"README.md", true},
		{"node_modules/pkg/index.js", false},
		{"a/node_modules/pkg/index.js", false},
		{"venv/lib/site.py", false},
		{"assets/logo.png", false},
		{"notebooks/train.ipynb", true},
		{"win\\style\\node_modules\\x.js", false},
	}
	for _, tt := range tests {
		if got := keepPath(tt.path); got != tt.want {
			t.Errorf("keepPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

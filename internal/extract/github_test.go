package extract

import (
	"reflect"
	"testing"
)

func TestUsername(t *testing.T) {
	tests := []struct {
		name string
		doc  any
		want string
	}{
		{
			name: "profile url",
			doc:  map[string]any{"links": []any{"https://github.com/octocat"}},
			want: "octocat",
		},
		{
			name: "repo url yields owner",
			doc:  map[string]any{"project": "see https://github.com/octocat/hello-world"},
			want: "octocat",
		},
		{
			name: "trailing punctuation stripped",
			doc:  map[string]any{"summary": "My GitHub: github.com/octocat."},
			want: "octocat",
		},
		{
			name: "no github mention",
			doc:  map[string]any{"links": []any{"https://gitlab.com/octocat"}},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Username(tt.doc); got != tt.want {
				t.Errorf("Username() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReferencedRepos(t *testing.T) {
	doc := map[string]any{
		"projects": []any{
			map[string]any{"url": "https://github.com/OctoCat/Hello-World.git"},
			map[string]any{"url": "https://raw.githubusercontent.com/octocat/data/main/x.csv"},
			map[string]any{"desc": "source code at octocat/tools"},
			map[string]any{"desc": "worked with TCP/IP and CI/CD"},
			map[string]any{"url": "https://github.com/octocat/hello-world?tab=readme"},
		},
	}
	got := ReferencedRepos(doc)
	want := []string{"octocat/hello-world", "octocat/data", "octocat/tools"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReferencedRepos() = %v, want %v", got, want)
	}
}

func TestNormalizeRepo(t *testing.T) {
	tests := []struct {
		owner, repo, want string
	}{
		{"OctoCat", "Hello-World", "octocat/hello-world"},
		{"octocat", "tools.git", "octocat/tools"},
		{"octocat", "repo?tab=readme", "octocat/repo"},
		{"octocat", "", ""},
		{"", "repo", ""},
	}
	for _, tt := range tests {
		if got := NormalizeRepo(tt.owner, tt.repo); got != tt.want {
			t.Errorf("NormalizeRepo(%q, %q) = %q, want %q", tt.owner, tt.repo, got, tt.want)
		}
	}
}

func TestSkills(t *testing.T) {
	cv := map[string]any{
		"skills": map[string]any{
			"technical": []any{"Go", "Python"},
			"tools":     []any{"Docker"},
		},
		"keywords": []any{"Kubernetes", "go", "2024"},
		"projects": []any{
			map[string]any{"tech": "PostgreSQL, Redis"},
			map[string]any{"stack": []any{"•  Terraform"}},
		},
	}
	got := Skills(cv)
	want := []string{"Go", "Python", "Docker", "Kubernetes", "PostgreSQL", "Redis", "Terraform"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Skills() = %v, want %v", got, want)
	}
}

func TestStringsDeterministic(t *testing.T) {
	doc := map[string]any{"b": "two", "a": "one", "c": []any{"three"}}
	want := []string{"one", "two", "three"}
	for i := 0; i < 5; i++ {
		if got := Strings(doc); !reflect.DeepEqual(got, want) {
			t.Fatalf("Strings() = %v, want %v", got, want)
		}
	}
}

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/repovet/repovet/internal/config"
	"github.com/repovet/repovet/internal/model"
)

func testClient(baseURL string) *Client {
	cfg := config.Default().HTTP
	cfg.BaseURL = baseURL
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	c := New(cfg, nil)
	c.sleep = func(time.Duration) {}
	c.jitter = func() float64 { return 0 }
	return c
}

func repoPage(n, start int) []model.RepoMeta {
	out := make([]model.RepoMeta, n)
	for i := range out {
		out[i] = model.RepoMeta{
			Name:     fmt.Sprintf("repo%d", start+i),
			FullName: fmt.Sprintf("u/repo%d", start+i),
			PushedAt: fmt.Sprintf("2026-01-%02dT00:00:00Z", (start+i)%28+1),
		}
	}
	return out
}

func TestListReposPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("Accept = %q", got)
		}
		page := r.URL.Query().Get("page")
		switch page {
		case "1":
			json.NewEncoder(w).Encode(repoPage(100, 0))
		case "2":
			json.NewEncoder(w).Encode(repoPage(30, 100))
		default:
			t.Errorf("unexpected page %s", page)
			json.NewEncoder(w).Encode([]model.RepoMeta{})
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	repos, meta, err := c.ListRepos(context.Background(), "u", 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(repos) != 130 {
		t.Errorf("got %d repos, want 130", len(repos))
	}
	if meta.PagesFetched != 2 {
		t.Errorf("pages = %d, want 2", meta.PagesFetched)
	}
	for i := 1; i < len(repos); i++ {
		if repos[i-1].PushedAt < repos[i].PushedAt {
			t.Fatal("repos not sorted by push time descending")
		}
	}
}

func TestListReposTruncatesAtMax(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(repoPage(100, 0))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	repos, _, err := c.ListRepos(context.Background(), "u", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(repos) != 50 {
		t.Errorf("got %d repos, want 50", len(repos))
	}
}

func TestListReposRateLimited(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			json.NewEncoder(w).Encode(repoPage(100, 0))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	repos, meta, err := c.ListRepos(context.Background(), "u", 200)
	if err != nil {
		t.Fatal(err)
	}
	if !meta.RateLimited {
		t.Error("RateLimited flag not set")
	}
	if len(repos) != 100 {
		t.Errorf("got %d repos from the page before the limit, want 100", len(repos))
	}
}

func TestGetRepoNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	repo, err := c.GetRepo(context.Background(), "ghost/ghost")
	if err != nil {
		t.Fatal(err)
	}
	if repo != nil {
		t.Errorf("repo = %+v, want nil", repo)
	}
}

func TestGetRepo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/u/thing" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(model.RepoMeta{FullName: "u/thing", DefaultBranch: "main"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	repo, err := c.GetRepo(context.Background(), "u/thing")
	if err != nil {
		t.Fatal(err)
	}
	if repo == nil || repo.FullName != "u/thing" {
		t.Errorf("repo = %+v", repo)
	}
}

func TestDownloadZipball(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/u/thing/zipball/main" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte("zipdata"))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	data, err := c.DownloadZipball(context.Background(), "u/thing", "main")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "zipdata" {
		t.Errorf("data = %q", data)
	}
}

func TestRetriesTransportErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			// kill the connection mid-response to force a transport error
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("hijacking unsupported")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(model.RepoMeta{FullName: "u/thing"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	repo, err := c.GetRepo(context.Background(), "u/thing")
	if err != nil {
		t.Fatal(err)
	}
	if repo == nil || repo.FullName != "u/thing" {
		t.Errorf("repo = %+v", repo)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestArchiveKey(t *testing.T) {
	key := ArchiveKey("octocat/hello-world", "main")

	if !strings.HasPrefix(key, "octocat__hello-world__main__") {
		t.Errorf("key prefix wrong: %s", key)
	}
	if !strings.HasSuffix(key, ".zip") {
		t.Errorf("key suffix wrong: %s", key)
	}
	if strings.Contains(key, "/") {
		t.Errorf("key must be path-safe: %s", key)
	}
	if key != ArchiveKey("octocat/hello-world", "main") {
		t.Error("key must be deterministic")
	}
	if key == ArchiveKey("octocat/hello-world", "dev") {
		t.Error("different branches must yield different keys")
	}
}

func TestDiskCacheRoundTrip(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)

	if _, ok := c.Get("missing.zip"); ok {
		t.Error("miss expected for absent key")
	}
	if err := c.Set("a.zip", []byte("payload"), 0); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get("a.zip")
	if !ok || string(got) != "payload" {
		t.Errorf("Get = %q, %v", got, ok)
	}

	if err := c.Delete("a.zip"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("a.zip"); ok {
		t.Error("deleted key must miss")
	}
}

func TestDiskCacheStaleEntryMisses(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	if err := c.Set("old.zip", []byte("stale"), 0); err != nil {
		t.Fatal(err)
	}

	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "old.zip"), past, past); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("old.zip"); ok {
		t.Error("stale entry must be treated as absent")
	}
}

func TestDiskCacheClear(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	if err := c.Set("a.zip", []byte("x"), 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("a.zip"); ok {
		t.Error("cleared cache must miss")
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Errorf("Get = %q, %v", got, ok)
	}
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("deleted key must miss")
	}
}

func TestLayeredPromotion(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Hour)

	if err := c.Set("a.zip", []byte("bytes"), 0); err != nil {
		t.Fatal(err)
	}

	// simulate a fresh process: memory empty, disk populated
	c.memory = NewMemoryCache(time.Minute, time.Minute)

	got, ok := c.Get("a.zip")
	if !ok || string(got) != "bytes" {
		t.Fatalf("disk fallback failed: %q, %v", got, ok)
	}

	// the hit must now be served from memory even if the file disappears
	if err := os.Remove(filepath.Join(dir, "a.zip")); err != nil {
		t.Fatal(err)
	}
	got, ok = c.Get("a.zip")
	if !ok || string(got) != "bytes" {
		t.Errorf("promotion to memory failed: %q, %v", got, ok)
	}
}

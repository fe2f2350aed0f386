package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache is the archive cache contract. Get misses on absent or stale
// entries. Set failures are the caller's to ignore: caching is best-effort
// and a failed write must never fail a fetch.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// ArchiveKey builds the cache key for one repository archive:
// {owner__repo}__{branch}__{hash16}.zip. Identical (repo, branch) pairs
// always map to the same key, which is what makes concurrent cache writes
// idempotent and lock-free.
func ArchiveKey(fullName, branch string) string {
	sum := sha256.Sum256([]byte(fullName + "@" + branch))
	safe := strings.ReplaceAll(fullName, "/", "__")
	return safe + "__" + branch + "__" + hex.EncodeToString(sum[:])[:16] + ".zip"
}

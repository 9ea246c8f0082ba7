package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores raw provider responses so identical batch prompts are not
// re-billed within a run (or across runs sharing a process).
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from a provider name and prompt text.
func Key(provider, prompt string) string {
	hash := sha256.Sum256([]byte(provider + "\x00" + prompt))
	return "patclaim:v1:" + hex.EncodeToString(hash[:])
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores opaque values with a time-to-live
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a filesystem-safe cache key for value within namespace
func Key(namespace, value string) string {
	hash := sha256.Sum256([]byte(value))
	return "claimroot-v1-" + namespace + "-" + hex.EncodeToString(hash[:])
}

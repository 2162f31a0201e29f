package kvstore

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrNotFound      = errors.New("key not found")
	ErrClosed        = errors.New("store closed")
	ErrInvalidKey    = errors.New("invalid key")
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// Store is a flat string-keyed byte store.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist.
	Get(key string) ([]byte, error)

	// Put stores a value, replacing any previous one.
	// Returns ErrQuotaExceeded when the backend is out of space.
	Put(key string, value []byte) error

	// Delete removes a key.
	// Returns nil if the key does not exist.
	Delete(key string) error

	// Keys returns all keys in sorted order.
	Keys() ([]string, error)

	// Close releases resources. Further calls return ErrClosed.
	Close() error
}

// ValidateKey checks if a key is valid.
// Keys must be non-empty, contain no whitespace, not start or end with a dot,
// and be at most 1024 bytes.
func ValidateKey(key string) error {
	if key == "" || len(key) > 1024 {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, " \t\r\n") {
		return ErrInvalidKey
	}
	if strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return ErrInvalidKey
	}
	return nil
}

// usage is the number of bytes a map of entries accounts for against a quota.
func usage(data map[string][]byte) int64 {
	var n int64
	for k, v := range data {
		n += int64(len(k) + len(v))
	}
	return n
}

package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
)

// FileStore implements Store as a single JSON object on disk.
//
// Every operation takes an exclusive lock on <path>.lock and re-reads the
// file, so several processes may share one store. Writes go to a temporary
// file that is renamed over the original.
type FileStore struct {
	path     string
	maxBytes int64
	flk      *flock.Flock
	mu       sync.Mutex
	closed   atomic.Bool
}

// NewFileStore opens (creating if needed) a file-backed store.
// A positive maxBytes limits the encoded file size.
func NewFileStore(path string, maxBytes int64) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path required")
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	s := &FileStore{
		path:     path,
		maxBytes: maxBytes,
		flk:      flock.New(path + ".lock"),
	}

	// Fail early on an unreadable file rather than on first use.
	if err := s.withLock(func() error {
		_, err := s.read()
		return err
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the data file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer func() { _ = s.flk.Unlock() }()

	return fn()
}

func (s *FileStore) read() (map[string][]byte, error) {
	data := make(map[string][]byte)

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return data, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(raw) == 0 {
		return data, nil
	}

	var doc map[string]string
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	for k, v := range doc {
		data[k] = []byte(v)
	}
	return data, nil
}

func (s *FileStore) write(data map[string][]byte) error {
	doc := make(map[string]string, len(data))
	for k, v := range data {
		doc[k] = string(v)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if s.maxBytes > 0 && int64(len(raw)) > s.maxBytes {
		return ErrQuotaExceeded
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", s.path, err)
	}
	return nil
}

// Get retrieves a value by key.
func (s *FileStore) Get(key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var value []byte
	err := s.withLock(func() error {
		data, err := s.read()
		if err != nil {
			return err
		}
		v, ok := data[key]
		if !ok {
			return ErrNotFound
		}
		value = v
		return nil
	})
	return value, err
}

// Put stores a value.
func (s *FileStore) Put(key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	return s.withLock(func() error {
		data, err := s.read()
		if err != nil {
			return err
		}
		data[key] = value
		return s.write(data)
	})
}

// Delete removes a key.
func (s *FileStore) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	return s.withLock(func() error {
		data, err := s.read()
		if err != nil {
			return err
		}
		if _, ok := data[key]; !ok {
			return nil
		}
		delete(data, key)
		return s.write(data)
	})
}

// Keys returns all keys in sorted order.
func (s *FileStore) Keys() ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var keys []string
	err := s.withLock(func() error {
		data, err := s.read()
		if err != nil {
			return err
		}
		keys = make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil
	})
	return keys, err
}

// Close shuts down the store.
func (s *FileStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.flk.Close()
}

//go:build integration

package kvstore

import (
	"errors"
	"os"
	"testing"

	"github.com/nats-io/nats.go"
)

func getNATSURL() string {
	if url := os.Getenv("NATS_URL"); url != "" {
		return url
	}
	return nats.DefaultURL
}

func newTestNATSStore(t *testing.T, bucket string) *NATSStore {
	conn, err := nats.Connect(getNATSURL())
	if err != nil {
		t.Skipf("NATS not available: %v", err)
	}

	store, err := NewNATSStore(NATSStoreConfig{Conn: conn, Bucket: bucket})
	if err != nil {
		conn.Close()
		t.Fatalf("NewNATSStore failed: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
		conn.Close()
	})
	return store
}

func TestNATSStore_PutGetDelete(t *testing.T) {
	s := newTestNATSStore(t, "samaya-test-putget")

	if err := s.Put("tasks", []byte("[]")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get("tasks")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("Get = %q, want %q", got, "[]")
	}

	if err := s.Delete("tasks"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("tasks"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
}

func TestNATSStore_Keys(t *testing.T) {
	s := newTestNATSStore(t, "samaya-test-keys")

	s.Put("focus-mode", []byte("false"))
	s.Put("last-update", []byte("1"))

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) < 2 {
		t.Errorf("Keys = %v, want at least 2", keys)
	}
}

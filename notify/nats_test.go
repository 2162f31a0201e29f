package notify

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestDefaultNATSConfig(t *testing.T) {
	cfg := DefaultNATSConfig()
	if cfg.URL != nats.DefaultURL {
		t.Errorf("URL = %q, want %q", cfg.URL, nats.DefaultURL)
	}
	if cfg.MaxReconnects != -1 {
		t.Errorf("MaxReconnects = %d, want -1", cfg.MaxReconnects)
	}
	if cfg.BufferSize != 64 {
		t.Errorf("BufferSize = %d, want 64", cfg.BufferSize)
	}
}

func TestBuildNATSOptions_GeneratesName(t *testing.T) {
	var o nats.Options
	for _, opt := range buildNATSOptions(NATSConfig{}) {
		if err := opt(&o); err != nil {
			t.Fatalf("option failed: %v", err)
		}
	}
	if !strings.HasPrefix(o.Name, "samaya-") {
		t.Errorf("Name = %q, want samaya- prefix", o.Name)
	}
}

func TestNATSHub_NilConn(t *testing.T) {
	h := NewNATSHubFromConn(nil, Config{})
	if err := h.Publish(SubjectEvents, nil); err != ErrClosed {
		t.Errorf("Publish error = %v, want ErrClosed", err)
	}
	if _, err := h.Subscribe(SubjectEvents); err != ErrClosed {
		t.Errorf("Subscribe error = %v, want ErrClosed", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close error = %v", err)
	}
}

func TestNATSHub_RoundTrip(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	h, err := NewNATSHub(NATSConfig{URL: url})
	if err != nil {
		t.Skipf("NATS not available: %v", err)
	}
	defer h.Close()

	sub, err := h.Subscribe("samaya.>")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	h.conn.Flush()
	h.Publish(SubjectEvents, []byte("hello"))

	select {
	case msg := <-sub.Messages():
		if string(msg.Data) != "hello" {
			t.Errorf("Data = %q, want %q", msg.Data, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

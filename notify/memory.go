package notify

import (
	"sync"
	"sync/atomic"
)

// MemoryHub implements Hub using in-memory channels.
type MemoryHub struct {
	config Config

	mu     sync.RWMutex
	subs   []*memorySub
	closed atomic.Bool
}

type memorySub struct {
	pattern string
	ch      chan *Message
	closed  atomic.Bool
	hub     *MemoryHub
}

// NewMemoryHub creates a new in-memory hub.
func NewMemoryHub(cfg Config) *MemoryHub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &MemoryHub{config: cfg}
}

// Publish sends a message to all matching subscribers.
func (h *MemoryHub) Publish(subject string, data []byte) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}
	if h.closed.Load() {
		return ErrClosed
	}

	msg := &Message{Subject: subject, Data: data}

	// Holding the read lock keeps Unsubscribe from closing a channel
	// mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.closed.Load() || !matchSubject(sub.pattern, subject) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// Buffer full, drop message
		}
	}
	return nil
}

// Subscribe creates a subscription.
func (h *MemoryHub) Subscribe(subject string) (Subscription, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}
	if h.closed.Load() {
		return nil, ErrClosed
	}

	sub := &memorySub{
		pattern: subject,
		ch:      make(chan *Message, h.config.BufferSize),
		hub:     h,
	}

	h.mu.Lock()
	h.subs = append(h.subs, sub)
	h.mu.Unlock()

	return sub, nil
}

// Close shuts down the hub.
func (h *MemoryHub) Close() error {
	if h.closed.Swap(true) {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if !sub.closed.Swap(true) {
			close(sub.ch)
		}
	}
	h.subs = nil
	return nil
}

// Messages returns the message channel.
func (s *memorySub) Messages() <-chan *Message {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *memorySub) Unsubscribe() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if s.closed.Swap(true) {
		return nil
	}
	for i, sub := range s.hub.subs {
		if sub == s {
			s.hub.subs = append(s.hub.subs[:i], s.hub.subs[i+1:]...)
			break
		}
	}
	close(s.ch)
	return nil
}

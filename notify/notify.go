// Package notify carries change notifications from the timer core to
// presentation hosts.
//
// A Hub is a small publish/subscribe surface. MemoryHub keeps everything in
// process; NATSHub fans notifications out over a NATS connection so hosts in
// other processes can follow the same session. Subscriptions expose a channel
// and drop messages rather than block the publisher when their buffer is full.
package notify

import (
	"errors"
	"strings"
)

// Subjects used by the session.
const (
	SubjectEvents   = "samaya.events"
	SubjectWarnings = "samaya.warnings"
)

// Common errors.
var (
	ErrClosed         = errors.New("hub closed")
	ErrInvalidSubject = errors.New("invalid subject")
)

// Message is a notification received from a hub.
type Message struct {
	Subject string
	Data    []byte
}

// Hub provides fan-out publish/subscribe.
type Hub interface {
	// Publish sends data to every subscriber of subject.
	Publish(subject string, data []byte) error

	// Subscribe registers interest in subject. A trailing ".>" matches any
	// suffix, as in NATS.
	Subscribe(subject string) (Subscription, error)

	// Close shuts the hub down and closes every subscription channel.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Messages returns the channel for incoming messages.
	// Channel is closed when subscription ends.
	Messages() <-chan *Message

	// Unsubscribe cancels the subscription.
	Unsubscribe() error
}

// Config holds common hub configuration.
type Config struct {
	// BufferSize for subscription channels.
	// Default: 64
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{BufferSize: 64}
}

// ValidateSubject checks if a subject is valid.
func ValidateSubject(subject string) error {
	if subject == "" || strings.ContainsAny(subject, " \t\r\n") {
		return ErrInvalidSubject
	}
	if strings.HasPrefix(subject, ".") || strings.HasSuffix(subject, ".") {
		return ErrInvalidSubject
	}
	return nil
}

// matchSubject reports whether subject is covered by pattern.
func matchSubject(pattern, subject string) bool {
	if pattern == ">" {
		return true
	}
	if strings.HasSuffix(pattern, ".>") {
		return strings.HasPrefix(subject, strings.TrimSuffix(pattern, ">"))
	}
	return pattern == subject
}

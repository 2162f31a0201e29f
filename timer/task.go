package timer

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vinayprograms/samaya/errors"
)

const (
	// MaxElapsed is the largest elapsed value in seconds (about 31.7 years).
	MaxElapsed int64 = 999_999_999

	// MaxTasks bounds the collection size.
	MaxTasks = 1000

	// MaxNameLength is the maximum task name length in characters.
	MaxNameLength = 50
)

// Task is a named accumulator of elapsed seconds.
type Task struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Elapsed   int64     `json:"elapsed"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Duration returns the elapsed time as a time.Duration.
func (t Task) Duration() time.Duration {
	return time.Duration(t.Elapsed) * time.Second
}

// ValidateName trims name and checks it is non-empty and at most
// MaxNameLength characters. It returns the trimmed name.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.InvalidInput("task name is empty")
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxNameLength {
		return "", errors.InvalidInput("task name is too long",
			errors.WithMetadata("length", strconv.Itoa(n)),
			errors.WithMetadata("max", strconv.Itoa(MaxNameLength)))
	}
	return trimmed, nil
}

// TruncateName trims name and cuts it to MaxNameLength characters.
// Used when restoring data written by older or foreign writers.
func TruncateName(name string) string {
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) <= MaxNameLength {
		return trimmed
	}
	r := []rune(trimmed)
	return strings.TrimSpace(string(r[:MaxNameLength]))
}

// ClampElapsed bounds v to [0, MaxElapsed].
func ClampElapsed(v int64) int64 {
	switch {
	case v < 0:
		return 0
	case v > MaxElapsed:
		return MaxElapsed
	default:
		return v
	}
}

// CreationTime truncates t to the millisecond in UTC, the precision stored
// for CreatedAt.
func CreationTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

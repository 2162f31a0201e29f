package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

// Error is the structured error type returned by samaya packages.
type Error struct {
	code     ErrorCode
	category ErrorCategory
	message  string
	cause    error
	taskID   int64 // zero when not tied to a task
	metadata map[string]string
	at       time.Time
}

var (
	_ error            = (*Error)(nil)
	_ json.Marshaler   = (*Error)(nil)
	_ json.Unmarshaler = (*Error)(nil)
)

func (e *Error) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *Error) Code() ErrorCode         { return e.code }
func (e *Error) Category() ErrorCategory { return e.category }
func (e *Error) Unwrap() error           { return e.cause }

// Message is the error text without the cause chain. It is what a
// presentation layer shows.
func (e *Error) Message() string { return e.message }

// TaskID returns the task the failure concerns, or zero.
func (e *Error) TaskID() int64 { return e.taskID }

// Timestamp returns when the error was created.
func (e *Error) Timestamp() time.Time { return e.at }

// Metadata returns a copy of the attached key/value context.
func (e *Error) Metadata() map[string]string {
	return maps.Clone(e.metadata)
}

// wireError is the JSON shape published on the notification hub.
type wireError struct {
	Code     ErrorCode         `json:"code"`
	Category ErrorCategory     `json:"category"`
	Message  string            `json:"message"`
	Cause    string            `json:"cause,omitempty"`
	TaskID   int64             `json:"taskId,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	At       *time.Time        `json:"at,omitempty"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	w := wireError{
		Code:     e.code,
		Category: e.category,
		Message:  e.message,
		TaskID:   e.taskID,
		Metadata: e.metadata,
	}
	if e.cause != nil {
		w.Cause = e.cause.Error()
	}
	if !e.at.IsZero() {
		at := e.at
		w.At = &at
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores an error published by MarshalJSON. The cause
// survives as text only. A missing category is derived from the code.
func (e *Error) UnmarshalJSON(data []byte) error {
	var w wireError
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Error{
		code:     w.Code,
		category: w.Category,
		message:  w.Message,
		taskID:   w.TaskID,
		metadata: w.Metadata,
	}
	if e.category == "" {
		e.category = w.Code.DefaultCategory()
	}
	if w.Cause != "" {
		e.cause = errors.New(w.Cause)
	}
	if w.At != nil {
		e.at = *w.At
	}
	return nil
}

// Option adds optional context to a new Error.
type Option func(*Error)

func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = map[string]string{}
		}
		e.metadata[key] = value
	}
}

func WithTaskID(id int64) Option {
	return func(e *Error) { e.taskID = id }
}

func WithCause(cause error) Option {
	return func(e *Error) { e.cause = cause }
}

// WithTimestamp overrides the creation time. Mostly for tests.
func WithTimestamp(t time.Time) Option {
	return func(e *Error) { e.at = t }
}

// New creates an Error in the code's default category.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{code: code, category: code.DefaultCategory(), message: message, at: time.Now()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromCode creates an error whose message is the code's description.
func FromCode(code ErrorCode, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

// InvalidInput rejects user input.
func InvalidInput(message string, opts ...Option) *Error {
	return New(ErrCodeInvalidInput, message, opts...)
}

// NotFound reports an unknown task id.
func NotFound(id int64, opts ...Option) *Error {
	return New(ErrCodeNotFound, fmt.Sprintf("task %d not found", id), append([]Option{WithTaskID(id)}, opts...)...)
}

// Corrupt reports persisted data that could not be used.
func Corrupt(message string, opts ...Option) *Error {
	return New(ErrCodeCorruption, message, opts...)
}

// QuotaExceeded reports a store that is out of space.
func QuotaExceeded(message string, opts ...Option) *Error {
	return New(ErrCodeQuotaExceeded, message, opts...)
}

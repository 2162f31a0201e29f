package errors

// ErrorCategory groups error codes by how the boundary layer should react.
type ErrorCategory string

const (
	// CategoryValidation covers rejected user input. Surfaced synchronously.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound covers operations on unknown task ids. Surfaced synchronously.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryPersistence covers key-value store failures. Logged, never retried.
	CategoryPersistence ErrorCategory = "persistence"

	// CategoryCorruption covers unparseable persisted data. Absorbed on load.
	CategoryCorruption ErrorCategory = "corruption"

	// CategoryInternal covers unexpected failures.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// UserVisible reports whether errors in this category are shown to the user
// by default. Quota failures are the one persistence case that is also shown;
// see IsQuota.
func (c ErrorCategory) UserVisible() bool {
	switch c {
	case CategoryValidation, CategoryNotFound:
		return true
	default:
		return false
	}
}

// ErrorCode identifies a specific failure.
type ErrorCode string

const (
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"  // empty or oversized name, malformed id
	ErrCodeCapacity      ErrorCode = "CAPACITY"       // task collection is full
	ErrCodeDuplicate     ErrorCode = "DUPLICATE"      // duplicate name without confirmation
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"      // unknown task id
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED" // store is out of space
	ErrCodeStorage       ErrorCode = "STORAGE"        // any other store failure
	ErrCodeCorruption    ErrorCode = "CORRUPTION"     // persisted blob unparseable
	ErrCodeInternal      ErrorCode = "INTERNAL"
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the category an error code belongs to.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeInvalidInput, ErrCodeCapacity, ErrCodeDuplicate:
		return CategoryValidation
	case ErrCodeNotFound:
		return CategoryNotFound
	case ErrCodeQuotaExceeded, ErrCodeStorage:
		return CategoryPersistence
	case ErrCodeCorruption:
		return CategoryCorruption
	default:
		return CategoryInternal
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeInvalidInput:  "invalid input",
	ErrCodeCapacity:      "task limit reached",
	ErrCodeDuplicate:     "a task with this name already exists",
	ErrCodeNotFound:      "task not found",
	ErrCodeQuotaExceeded: "storage quota exceeded",
	ErrCodeStorage:       "storage failure",
	ErrCodeCorruption:    "saved data is corrupt",
	ErrCodeInternal:      "internal error",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}

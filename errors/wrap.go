package errors

import "errors"

// Wrap adds message in front of err. An *Error anywhere in the chain lends
// its code, category, task id and metadata; anything else becomes INTERNAL.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	inner := As(err)
	if inner == nil {
		return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
	}

	e := New(inner.code, message, opts...)
	e.category = inner.category
	e.cause = err
	if e.taskID == 0 {
		e.taskID = inner.taskID
	}
	for k, v := range inner.metadata {
		if _, set := e.metadata[k]; !set {
			WithMetadata(k, v)(e)
		}
	}
	return e
}

// WrapWithCode files err under code regardless of what it was.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	return New(code, message, append(opts, WithCause(err))...)
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Code returns the code of the first *Error in err's chain, or "".
func Code(err error) ErrorCode {
	if e := As(err); e != nil {
		return e.code
	}
	return ""
}

// Is reports whether err carries code.
func Is(err error, code ErrorCode) bool {
	return code != "" && Code(err) == code
}

// IsCategory reports whether err falls in category.
func IsCategory(err error, category ErrorCategory) bool {
	e := As(err)
	return e != nil && e.category == category
}

func IsValidation(err error) bool  { return IsCategory(err, CategoryValidation) }
func IsNotFound(err error) bool    { return IsCategory(err, CategoryNotFound) }
func IsPersistence(err error) bool { return IsCategory(err, CategoryPersistence) }
func IsCorrupt(err error) bool     { return IsCategory(err, CategoryCorruption) }

// IsQuota reports a full store, the one persistence failure users see.
func IsQuota(err error) bool { return Is(err, ErrCodeQuotaExceeded) }

// Join combines errs, dropping nils. It returns nil when all are nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Package errors provides the structured error taxonomy used across samaya.
//
// Every failure the core reports carries an ErrorCode and an ErrorCategory so
// the boundary layer can decide how to present it without string matching.
//
// # Categories
//
//   - Validation: bad or oversized input, capacity exceeded, duplicate needing confirmation
//   - NotFound: an operation referenced an unknown task id
//   - Persistence: the key-value store rejected a read or write (quota vs generic)
//   - Corruption: persisted data could not be parsed or is structurally invalid
//   - Internal: anything else
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "task name is empty")
//
//	if errors.IsValidation(err) {
//	    // show the message next to the input
//	}
//
//	if errors.IsQuota(err) {
//	    // warn the user: data loss is imminent
//	}
//
// Errors marshal to JSON so they can travel over the notification hub:
//
//	data, _ := json.Marshal(err)
package errors

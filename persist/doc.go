// Package persist maps timer state onto a string key-value store.
//
// The layout uses four keys:
//
//	tasks            JSON array of {id, name, time, isRunning, createdAt}
//	focus-mode       "true" or "false"
//	focused-task-id  decimal task id, or empty
//	last-update      decimal unix milliseconds of the last successful save
//
// last-update is written last, after every other key succeeded, so its
// presence means the other keys are at least as new.
//
// [Gateway] reads and writes the layout. [Flusher] saves on a fixed interval
// and reports quota failures as warnings.
package persist

// Package timer owns the task collection and its lifecycle.
//
// A [Store] holds every [Task] in creation order and enforces the rules that
// make the timer trustworthy:
//
//   - at most one task is active at any observable instant
//   - elapsed time stays within [0, MaxElapsed] and only grows while active
//   - ids are unique and never reused, also after deletion or reload
//   - the collection never holds more than MaxTasks tasks
//
// Each intent (Add, Start, Pause, Reset, Delete, EnterFocus, ExitFocus) runs to
// completion under the store mutex. The active task accrues one second per
// tick on a background goroutine that re-enters the store through the same
// mutex. Observers registered with [WithObserver] receive an [Event] with a
// post-mutation [Snapshot] after every change.
//
// Operations that would silently discard user state are split in two:
// ProposeAdd and ProposeStart report whether a confirmation is required, and
// Add and Start commit.
package timer

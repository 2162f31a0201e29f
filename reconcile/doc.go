// Package reconcile turns persisted timer state back into a live store.
//
// Loading happens after the host may have been suspended for an unknown
// time. The engine decodes the saved collection strictly, dropping any
// record that is not well-typed, repairs a collection with more than one
// active task, and credits the time the host was away to the task that was
// running when state was last saved. Away time is capped so a clock jump or
// a long absence cannot inflate a task without bound.
package reconcile

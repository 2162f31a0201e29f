// Package kvstore provides the string key-value stores that back persisted
// timer state.
//
// Three backends implement [Store]:
//
//   - [MemoryStore]: in-process map with an optional byte quota. Used in tests
//     and for ephemeral sessions.
//   - [FileStore]: a single JSON document on disk, guarded by an inter-process
//     file lock and written with an atomic rename.
//   - [NATSStore]: a NATS JetStream key-value bucket.
//
// Every backend reports an out-of-space condition as [ErrQuotaExceeded] so
// callers can surface it to the user regardless of the medium.
package kvstore

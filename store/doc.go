// Package store implements a crash-consistent, append-only log over a single
// file. Appends are atomic and ordered but not durable: no fsync is issued on
// the write path, so a crash may lose the most recent records. The recovery
// scan at open time truncates the logical view at the first torn or corrupt
// frame, which guarantees that everything before it was fully written.
package store

// Package history records export runs in a local SQLite database.
//
// Only run metadata is stored (timestamps, counts, status and the files that
// were written). User records never leave the process that fetched them.
package history

// Package storage persists the delivery journal: one entry per notification
// attempt, successful or not. The journal is operational evidence for "did
// the push go out", separate from the seen-state snapshots that drive
// detection. Journal failures are logged and never affect detection.
//
// Backends:
//   - file: append-only JSON Lines, no extra dependencies
//   - sqlite: SQLite database file (build with -tags sqlite)
package storage

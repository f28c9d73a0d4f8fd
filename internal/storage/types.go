package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the journal.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", the journal is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DeliveryEntry records one notification attempt.
// Keep it compact and schema-stable.
type DeliveryEntry struct {
	At       time.Time `json:"at"`
	Stream   string    `json:"stream"` // "grades" | "assignments"
	Key      string    `json:"key"`
	Kind     string    `json:"kind"`
	Title    string    `json:"title"`
	Priority string    `json:"priority"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
}

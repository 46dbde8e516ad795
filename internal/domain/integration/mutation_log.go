package integration

import (
	"context"
	"encoding/json"
	"time"
)

// MutationLogEntry records the remote response to one upsert mutation
type MutationLogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	ProductID int64           `json:"product_id"`
	Handle    string          `json:"handle"`
	Action    string          `json:"action"`
	Response  json.RawMessage `json:"response"`
}

// MutationLog is an append-only audit trail of mutation responses.
// Record never blocks on I/O; Flush persists buffered entries and never fails
// the caller, write errors are reported by the implementation itself.
type MutationLog interface {
	Record(entry MutationLogEntry)
	Size() int
	// Flush writes all buffered entries and returns how many were written
	Flush() int
	// Path is the file the entries are appended to
	Path() string
}

// MutationLogFactory opens the audit trail for a run started at the given time
type MutationLogFactory func(runStart time.Time) MutationLog

// AuditArchiver copies a finished audit file to long-term storage
type AuditArchiver interface {
	Archive(ctx context.Context, path string) error
}

package domain

import "time"

// AuditEntry represents a single audit log record.
type AuditEntry struct {
	ID        int64
	Actor     string // principal the event concerns (eppn or "system")
	Action    string // e.g. "CREATE_IDENTITY", "UPDATE_IDENTITY", "COMMIT_GRANTS"
	Detail    string
	Status    string // "ALLOWED", "REJECTED", "ERROR"
	CreatedAt time.Time
}

// Audit statuses.
const (
	AuditAllowed  = "ALLOWED"
	AuditRejected = "REJECTED"
	AuditError    = "ERROR"
)

package types

// MemberSyncResult reports what the rule engine did for one member.
type MemberSyncResult struct {
	MemberID  string   `json:"member_id"`
	Granted   []string `json:"granted"`
	Revoked   []string `json:"revoked"`
	Unchanged []string `json:"unchanged"`
}

type SyncError struct {
	MemberID   string `json:"member_id"`
	MemberName string `json:"member_name,omitempty"`
	Error      string `json:"error"`
}

// SyncResult aggregates a fleet-wide qualification sync.  Per-member failures
// are collected here rather than aborting the batch.
type SyncResult struct {
	Granted   int         `json:"granted"`
	Revoked   int         `json:"revoked"`
	Unchanged int         `json:"unchanged"`
	Errors    []SyncError `json:"errors,omitempty"`
}

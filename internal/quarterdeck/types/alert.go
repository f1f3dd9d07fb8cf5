package types

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert types raised by the scheduled jobs.
const (
	AlertBuildingNotSecured    = "building_not_secured"
	AlertMemberMissedCheckout  = "member_missed_checkout"
	AlertDutyWatchMissing      = "duty_watch_missing"
	AlertDutyWatchNotCheckedIn = "duty_watch_not_checked_in"
	AlertLockupUnassigned      = "lockup_unassigned"
	AlertLockupNotTransferred  = "lockup_not_transferred"
	AlertLockupHandoff         = "lockup_handoff"
)

// Alert is a fire-and-forget notification.  Failures to deliver one must never
// fail the operation that raised it.
type Alert struct {
	Type     string         `json:"type"`
	Severity string         `json:"severity"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
}

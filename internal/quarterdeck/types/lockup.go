package types

// Building status values for a lockup day.  "open" means nobody has secured
// the building yet this cycle, "locking_up" is the transient execution state,
// "secured" is terminal for the day.
const (
	StatusOpen      = "open"
	StatusLockingUp = "locking_up"
	StatusSecured   = "secured"
)

// Transfer reasons recorded on custody handoffs.
const (
	ReasonManual            = "manual"
	ReasonDDSHandoff        = "dds_handoff"
	ReasonDutyWatchTakeover = "duty_watch_takeover"
	ReasonCheckoutTransfer  = "checkout_transfer"
)

type AcquireRequest struct {
	MemberID string `json:"member_id"`
	Notes    string `json:"notes,omitempty"`
}

type TransferRequest struct {
	ToMemberID string `json:"to_member_id"`
	Reason     string `json:"reason"`
	Notes      string `json:"notes,omitempty"`
}

type ExecuteRequest struct {
	MemberID string `json:"member_id"`
	Note     string `json:"note,omitempty"`
}

// LockupStatus is the read-only snapshot of one operational day's custody
// state.
type LockupStatus struct {
	Date            string  `json:"date"` // operational date, YYYY-MM-DD
	BuildingStatus  string  `json:"building_status"`
	CurrentHolderID *string `json:"current_holder_id"`
	HolderName      string  `json:"holder_name,omitempty"`
	AcquiredAt      string  `json:"acquired_at,omitempty"`
	SecuredAt       string  `json:"secured_at,omitempty"`
	SecuredBy       *string `json:"secured_by,omitempty"`
	ServerTime      string  `json:"server_time"`
}

type TransferResult struct {
	TransferID   string `json:"transfer_id"`
	FromMemberID string `json:"from_member_id,omitempty"`
	ToMemberID   string `json:"to_member_id"`
	Reason       string `json:"reason"`
	TransferredAt string `json:"transferred_at"`
}

type ExecuteResult struct {
	ExecutionID string `json:"execution_id"`
	MembersOut  int    `json:"members_out"`
	VisitorsOut int    `json:"visitors_out"`
	ExecutedAt  string `json:"executed_at"`
}

// Checkout option identifiers reported by CheckoutOptions.
const (
	OptionNormalCheckout = "normal_checkout"
	OptionTransferLockup = "transfer_lockup"
	OptionExecuteLockup  = "execute_lockup"
)

type Recipient struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Rank          string `json:"rank"`
	ServiceNumber string `json:"service_number,omitempty"`
}

// CheckoutOptions tells the kiosk what a member may do when trying to leave.
// A custody holder cannot simply check out; they must transfer or execute
// lockup first.
type CheckoutOptions struct {
	MemberID           string      `json:"member_id"`
	HoldsLockup        bool        `json:"holds_lockup"`
	CanCheckout        bool        `json:"can_checkout"`
	BlockReason        string      `json:"block_reason,omitempty"`
	AvailableOptions   []string    `json:"available_options"`
	EligibleRecipients []Recipient `json:"eligible_recipients,omitempty"`
}

// HistoryItem is one custody event: a transfer or an execution.
type HistoryItem struct {
	ID           string `json:"id"`
	Type         string `json:"type"` // "transfer" | "execution"
	FromMemberID string `json:"from_member_id,omitempty"`
	ToMemberID   string `json:"to_member_id,omitempty"`
	ExecutedBy   string `json:"executed_by,omitempty"`
	MembersOut   int    `json:"members_out,omitempty"`
	VisitorsOut  int    `json:"visitors_out,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Timestamp    string `json:"timestamp"`
}

type HistoryPage struct {
	Items   []HistoryItem `json:"items"`
	Total   int           `json:"total"`
	HasMore bool          `json:"has_more"`
}

type PresentMember struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Rank        string `json:"rank"`
	CheckedInAt string `json:"checked_in_at"`
}

type PresentVisitor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CheckedInAt string `json:"checked_in_at"`
}

// PresentSnapshot lists everyone currently inside, shown on the lockup
// confirmation screen.
type PresentSnapshot struct {
	Members  []PresentMember  `json:"members"`
	Visitors []PresentVisitor `json:"visitors"`
}

package types

// ResetSummary reports what one daily reset run did.  A yesterday with no
// custody record counts as secured; there was nothing left open.
type ResetSummary struct {
	Date               string   `json:"date"`
	Skipped            bool     `json:"skipped,omitempty"`
	PreviousDaySecured bool     `json:"previous_day_secured"`
	MissedCheckouts    int      `json:"missed_checkouts"`
	VisitorsOut        int      `json:"visitors_out"`
	Errors             []string `json:"errors,omitempty"`
}

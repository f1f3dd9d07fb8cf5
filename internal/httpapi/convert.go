package httpapi

import (
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/types"
)

// Wire request types.  Kept separate from the domain types so the JSON surface
// can evolve without touching the services.

type acquireRequest struct {
	MemberID string `json:"member_id"`
	Notes    string `json:"notes"`
}

func (r acquireRequest) toDomain() types.AcquireRequest {
	return types.AcquireRequest{MemberID: r.MemberID, Notes: r.Notes}
}

type transferRequest struct {
	ToMemberID string `json:"to_member_id"`
	Reason     string `json:"reason"`
	Notes      string `json:"notes"`
}

func (r transferRequest) toDomain() types.TransferRequest {
	return types.TransferRequest{ToMemberID: r.ToMemberID, Reason: r.Reason, Notes: r.Notes}
}

type executeRequest struct {
	MemberID string `json:"member_id"`
	Note     string `json:"note"`
}

func (r executeRequest) toDomain() types.ExecuteRequest {
	return types.ExecuteRequest{MemberID: r.MemberID, Note: r.Note}
}

type ackRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

type alertView struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Status    string         `json:"status"`
	CreatedAt string         `json:"created_at"`
}

func alertsResponse(recs []store.AlertRecord) []alertView {
	out := make([]alertView, 0, len(recs))
	for _, r := range recs {
		out = append(out, alertView{
			ID:        r.ID,
			Type:      r.Type,
			Severity:  r.Severity,
			Title:     r.Title,
			Message:   r.Message,
			Data:      r.Data,
			Status:    r.Status,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

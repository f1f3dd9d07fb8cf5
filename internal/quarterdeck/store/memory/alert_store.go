package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
)

type AlertStore struct {
	mu     sync.Mutex
	alerts []store.AlertRecord
}

func NewAlertStore() *AlertStore {
	return &AlertStore{}
}

func (s *AlertStore) RecordAlert(_ context.Context, rec store.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.alerts = append(s.alerts, rec)
	return nil
}

func (s *AlertStore) ListActive(_ context.Context) ([]store.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.AlertRecord
	for _, a := range s.alerts {
		if a.Status == "active" {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *AlertStore) Acknowledge(_ context.Context, id, by string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Status = "acknowledged"
			t := at
			s.alerts[i].AcknowledgedAt = &t
			b := by
			s.alerts[i].AcknowledgedBy = &b
			return nil
		}
	}
	return fault.NotFound("alert %s", id)
}

// Alerts returns a copy of everything recorded.  Test-only helper.
func (s *AlertStore) Alerts() []store.AlertRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AlertRecord, len(s.alerts))
	copy(out, s.alerts)
	return out
}

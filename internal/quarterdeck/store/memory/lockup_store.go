// Package memory provides mutex-guarded in-memory store implementations.
// They are intended for tests and dev environments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
)

type LockupStore struct {
	mu         sync.Mutex
	days       map[string]store.LockupDay
	transfers  []store.TransferEvent
	executions []store.ExecutionEvent
}

func NewLockupStore() *LockupStore {
	return &LockupStore{days: make(map[string]store.LockupDay)}
}

func (s *LockupStore) FindDay(_ context.Context, date string) (store.LockupDay, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day, ok := s.days[date]
	return day, ok, nil
}

func (s *LockupStore) CreateDay(_ context.Context, day store.LockupDay) (store.LockupDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.days[day.Date]; ok {
		return store.LockupDay{}, fault.Conflict("lockup day %s already exists", day.Date)
	}
	if day.CreatedAt.IsZero() {
		day.CreatedAt = time.Now().UTC()
	}
	day.UpdatedAt = day.CreatedAt
	s.days[day.Date] = day
	return day, nil
}

func (s *LockupStore) SwapHolder(_ context.Context, date string, expected, next *string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.days[date]
	if !ok {
		return fault.NotFound("lockup day %s", date)
	}
	if day.BuildingStatus == "secured" {
		return fault.Conflict("lockup day %s already secured", date)
	}
	if !strPtrEq(day.CurrentHolderID, expected) {
		return fault.Conflict("lockup holder changed for %s", date)
	}

	day.CurrentHolderID = next
	if next != nil {
		t := at
		day.AcquiredAt = &t
	} else {
		day.AcquiredAt = nil
	}
	day.UpdatedAt = at
	s.days[date] = day
	return nil
}

func (s *LockupStore) MarkLockingUp(_ context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.days[date]
	if !ok {
		return fault.NotFound("lockup day %s", date)
	}
	if day.BuildingStatus == "secured" {
		return fault.Conflict("lockup day %s already secured", date)
	}
	day.BuildingStatus = "locking_up"
	day.UpdatedAt = time.Now().UTC()
	s.days[date] = day
	return nil
}

func (s *LockupStore) MarkSecured(_ context.Context, date string, expected *string, securedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.days[date]
	if !ok {
		return fault.NotFound("lockup day %s", date)
	}
	if day.BuildingStatus == "secured" {
		return fault.Conflict("lockup day %s already secured", date)
	}
	if !strPtrEq(day.CurrentHolderID, expected) {
		return fault.Conflict("lockup holder changed for %s", date)
	}

	day.BuildingStatus = "secured"
	t := at
	day.SecuredAt = &t
	by := securedBy
	day.SecuredBy = &by
	day.UpdatedAt = at
	s.days[date] = day
	return nil
}

func (s *LockupStore) AppendTransfer(_ context.Context, ev store.TransferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = append(s.transfers, ev)
	return nil
}

func (s *LockupStore) AppendExecution(_ context.Context, ev store.ExecutionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, ev)
	return nil
}

func (s *LockupStore) ListTransfers(_ context.Context, start, end *time.Time, limit, offset int) ([]store.TransferEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.TransferEvent
	for _, ev := range s.transfers {
		if inRange(ev.TransferredAt, start, end) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransferredAt.After(out[j].TransferredAt) })
	return page(out, limit, offset), nil
}

func (s *LockupStore) ListExecutions(_ context.Context, start, end *time.Time, limit, offset int) ([]store.ExecutionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.ExecutionEvent
	for _, ev := range s.executions {
		if inRange(ev.ExecutedAt, start, end) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	return page(out, limit, offset), nil
}

func (s *LockupStore) CountTransfers(_ context.Context, start, end *time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.transfers {
		if inRange(ev.TransferredAt, start, end) {
			n++
		}
	}
	return n, nil
}

func (s *LockupStore) CountExecutions(_ context.Context, start, end *time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.executions {
		if inRange(ev.ExecutedAt, start, end) {
			n++
		}
	}
	return n, nil
}

// Transfers returns a copy of all recorded transfer events.  Test-only helper.
func (s *LockupStore) Transfers() []store.TransferEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.TransferEvent, len(s.transfers))
	copy(out, s.transfers)
	return out
}

// Executions returns a copy of all recorded executions.  Test-only helper.
func (s *LockupStore) Executions() []store.ExecutionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.ExecutionEvent, len(s.executions))
	copy(out, s.executions)
	return out
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// inRange filters on [start, end): the end bound is exclusive, matching the
// "< ?" clause the sqlite store uses.
func inRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && !t.Before(*end) {
		return false
	}
	return true
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

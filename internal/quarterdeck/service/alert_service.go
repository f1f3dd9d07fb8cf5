package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/clock"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/types"
)

// AlertSink is the fire-and-forget notification contract the scheduled jobs
// depend on.  A failure to deliver an alert must never fail the operation that
// raised it, so Raise returns nothing.
type AlertSink interface {
	Raise(ctx context.Context, a types.Alert)
}

// defaultAlertThrottle is the minimum gap between two alerts of the same type.
const defaultAlertThrottle = 15 * time.Minute

// AlertService persists alerts, broadcasts them, and throttles repeats so a
// violation that is re-detected every check does not spam the channel.
type AlertService struct {
	store     store.AlertStore
	broadcast Broadcaster
	clock     clock.Clock
	logger    *log.Logger

	mu       sync.Mutex
	throttle time.Duration
	limiters map[string]*rate.Limiter
}

func NewAlertService(st store.AlertStore, b Broadcaster, clk clock.Clock, logger *log.Logger) *AlertService {
	if b == nil {
		b = NopBroadcaster{}
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AlertService{
		store:     st,
		broadcast: b,
		clock:     clk,
		logger:    logger,
		throttle:  defaultAlertThrottle,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// SetThrottle overrides the per-type repeat gap.  Zero disables throttling.
func (s *AlertService) SetThrottle(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttle = d
	s.limiters = make(map[string]*rate.Limiter)
}

func (s *AlertService) allow(alertType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.throttle <= 0 {
		return true
	}
	lim, ok := s.limiters[alertType]
	if !ok {
		lim = rate.NewLimiter(rate.Every(s.throttle), 1)
		s.limiters[alertType] = lim
	}
	return lim.Allow()
}

// Raise records and broadcasts an alert.  Errors are logged, never returned.
func (s *AlertService) Raise(ctx context.Context, a types.Alert) {
	if !s.allow(a.Type) {
		s.logger.Printf("alert throttled: type=%s", a.Type)
		return
	}

	s.logger.Printf("alert raised: type=%s severity=%s title=%q", a.Type, a.Severity, a.Title)

	now := s.clock.Now().UTC()
	rec := store.AlertRecord{
		ID:        uuid.NewString(),
		Type:      a.Type,
		Severity:  a.Severity,
		Title:     a.Title,
		Message:   a.Message,
		Data:      a.Data,
		Status:    "active",
		CreatedAt: now,
	}
	if err := s.store.RecordAlert(ctx, rec); err != nil {
		s.logger.Printf("alert store error: %v", err)
	}

	s.broadcast.Publish(Event{
		Name: EventAlertRaised,
		At:   now,
		Payload: map[string]any{
			"id":       rec.ID,
			"type":     a.Type,
			"severity": a.Severity,
			"message":  a.Title + ": " + a.Message,
		},
	})
}

// ListActive returns unacknowledged alerts.
func (s *AlertService) ListActive(ctx context.Context) ([]store.AlertRecord, error) {
	return s.store.ListActive(ctx)
}

// Acknowledge marks an alert handled.
func (s *AlertService) Acknowledge(ctx context.Context, id, by string) error {
	return s.store.Acknowledge(ctx, id, by, s.clock.Now().UTC())
}

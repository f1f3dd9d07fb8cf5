package service

import "time"

// Event names emitted on custody state changes.  Consumers (websocket fanout,
// TV display) live outside this module and subscribe through a Broadcaster
// implementation.
const (
	EventLockupTransferred = "lockup.transferred"
	EventLockupExecuted    = "lockup.executed"
	EventLockupStatus      = "lockup.status"
	EventAlertRaised       = "alert.raised"
)

type Event struct {
	Name    string
	At      time.Time
	Payload map[string]any
}

// Broadcaster delivers events to real-time subscribers.  Delivery is
// best-effort; implementations must not block state changes.
type Broadcaster interface {
	Publish(ev Event)
}

// NopBroadcaster discards all events.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(Event) {}

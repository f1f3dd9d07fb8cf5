package store

import (
	"context"
	"time"
)

type AlertRecord struct {
	ID             string
	Type           string
	Severity       string
	Title          string
	Message        string
	Data           map[string]any
	Status         string // "active" | "acknowledged" | "dismissed"
	CreatedAt      time.Time
	AcknowledgedAt *time.Time
	AcknowledgedBy *string
}

type AlertStore interface {
	RecordAlert(ctx context.Context, rec AlertRecord) error
	ListActive(ctx context.Context) ([]AlertRecord, error)
	Acknowledge(ctx context.Context, id, by string, at time.Time) error
}

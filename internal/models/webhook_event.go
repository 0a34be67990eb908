// internal/models/webhook_event.go
package models

import "time"

// WebhookEvent is the dedupe record for inbound gateway webhooks. The
// unique (gateway, event_id) pair makes ingestion idempotent: redelivered
// events hit the constraint and are acknowledged without reprocessing.
type WebhookEvent struct {
	BaseModel
	Gateway      PaymentGateway `json:"gateway" gorm:"type:varchar(20);not null;uniqueIndex:ux_webhook_events_gateway_event,priority:1"`
	EventID      string         `json:"event_id" gorm:"size:128;not null;uniqueIndex:ux_webhook_events_gateway_event,priority:2"`
	EventType    string         `json:"event_type" gorm:"size:64;not null"`
	Payload      JSONB          `json:"payload,omitempty" gorm:"type:jsonb"`
	ReceivedAt   time.Time      `json:"received_at"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	ProcessError string         `json:"process_error,omitempty" gorm:"size:255"`
}

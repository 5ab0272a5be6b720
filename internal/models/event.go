package models

import "time"

// Outcome - итог завершённой попытки отмены.
type Outcome string

const (
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeDownsellAccepted Outcome = "downsell_accepted"
)

// Valid сообщает, известен ли исход.
func (o Outcome) Valid() bool {
	return o == OutcomeCancelled || o == OutcomeDownsellAccepted
}

// CancellationEvent - уведомление о финализации попытки, публикуется в RabbitMQ.
type CancellationEvent struct {
	AttemptID      string    `json:"attempt_id"`
	SubscriptionID string    `json:"subscription_id"`
	UserID         string    `json:"user_id"`
	Outcome        Outcome   `json:"outcome"`
	MonthlyPrice   float64   `json:"monthly_price"`
	OccurredAt     time.Time `json:"occurred_at"`
}

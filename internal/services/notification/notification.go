// Package notification обрабатывает события финализации попыток отмены,
// которые публикует сервис потока отмены.
package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-cancellation/internal/metrics"
	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
)

// Service пишет журнал удержания по событиям отмены.
type Service struct {
	log *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(log *slog.Logger) *Service {
	return &Service{log: log}
}

// HandleCancellationEvent разбирает событие и записывает его в журнал.
// Неразборчивое сообщение логируется и подтверждается: повторная доставка его не исправит.
func (s *Service) HandleCancellationEvent(ctx context.Context, body []byte) error {
	const op = "notification.HandleCancellationEvent"
	log := s.log.With(slog.String("op", op))

	var event models.CancellationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("dropping malformed event", sl.Err(err))
		return nil
	}
	if !event.Outcome.Valid() || event.AttemptID == "" {
		log.Error("dropping event with unknown outcome", slog.String("outcome", string(event.Outcome)))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	metrics.NotificationsHandled.WithLabelValues(string(event.Outcome)).Inc()
	log.Info("cancellation event received",
		slog.String("attempt_id", event.AttemptID),
		slog.String("subscription_id", event.SubscriptionID),
		slog.String("user_id", event.UserID),
		slog.String("outcome", string(event.Outcome)),
		slog.Float64("monthly_price", event.MonthlyPrice),
		slog.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

package cancellation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/bucket"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/pricing"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-cancellation/internal/metrics"
	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
	"github.com/magabrotheeeer/subscription-cancellation/internal/storage"
)

// Complete сохраняет ответы и применяет конечный эффект к подписке:
// при принятом downsell подписка возвращается в active со скидкой 50%,
// иначе отменяется. Повторный вызов с тем же исходом ничего не меняет.
//
// Если ответы записаны, а статус подписки обновить не удалось, возвращается
// *CompleteError с AnswersSaved = true.
func (s *Service) Complete(ctx context.Context, attemptID, userID string, answers models.Answers) error {
	const op = "cancellation.Complete"
	log := s.log.With(slog.String("op", op), slog.String("attempt_id", attemptID))

	if attemptID == "" || userID == "" {
		return fmt.Errorf("%w: attempt id and user id are required", ErrValidation)
	}

	attempt, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, storage.ErrAttemptNotFound) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		log.Error("failed to read attempt", sl.Err(err))
		return storageErr(err)
	}
	if attempt.UserID != userID {
		return fmt.Errorf("%w: attempt belongs to another user", ErrForbidden)
	}
	// Гейт считается по id из хранилища: клиентская запись id может отличаться от канонической.
	if answers.AcceptedDownsell && !bucket.Half(attempt.ID) {
		return fmt.Errorf("%w: offer was not presented for this attempt", ErrValidation)
	}
	if attempt.Completed() && attempt.Answers.AcceptedDownsell != answers.AcceptedDownsell {
		return fmt.Errorf("%w: attempt already completed with a different outcome", ErrValidation)
	}

	now := s.now()
	if err := s.store.SaveAnswers(ctx, attempt.ID, answers, now); err != nil {
		log.Error("failed to save answers", sl.Err(err))
		return storageErr(err)
	}

	sub, changed, err := s.finalizeSubscription(ctx, attempt.SubscriptionID, answers.AcceptedDownsell, now)
	if err != nil {
		log.Error("answers saved but subscription status was not updated", sl.Err(err))
		return &CompleteError{AnswersSaved: true, Err: err}
	}
	if !changed {
		log.Info("subscription already finalized", slog.String("status", string(sub.Status)))
		return nil
	}

	outcome := models.OutcomeCancelled
	if answers.AcceptedDownsell {
		outcome = models.OutcomeDownsellAccepted
	}
	metrics.Completions.WithLabelValues(string(outcome)).Inc()
	log.Info("cancellation attempt completed", slog.String("outcome", string(outcome)))

	event := models.CancellationEvent{
		AttemptID:      attempt.ID,
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Outcome:        outcome,
		MonthlyPrice:   pricing.ToMajor(sub.MonthlyPrice),
		OccurredAt:     now,
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		log.Warn("failed to publish cancellation event", sl.Err(err))
	}
	return nil
}

// finalizeSubscription переводит подписку из pending_cancellation в целевой статус.
// changed = false, если подписка уже находится в целевом статусе.
func (s *Service) finalizeSubscription(ctx context.Context, subscriptionID string, accepted bool, at time.Time) (*models.Subscription, bool, error) {
	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, false, storageErr(err)
	}

	target := models.StatusCancelled
	if accepted {
		target = models.StatusActive
	}
	if sub.Status == target {
		return sub, false, nil
	}
	if !models.CanTransition(sub.Status, target) {
		return nil, false, fmt.Errorf("%w: subscription is %s, cannot move to %s", ErrValidation, sub.Status, target)
	}

	if accepted {
		newPrice := pricing.AcceptedDownsellPrice(sub.MonthlyPrice)
		err = s.store.ApplyDownsell(ctx, sub.ID, sub.MonthlyPrice, newPrice, at)
		if err == nil {
			sub.MonthlyPrice = newPrice
		}
	} else {
		err = s.store.Cancel(ctx, sub.ID, at)
		if err == nil {
			sub.CancelledAt = &at
		}
	}
	if err == nil {
		sub.Status = target
		return sub, true, nil
	}
	if !errors.Is(err, storage.ErrStatusConflict) {
		return nil, false, storageErr(err)
	}

	// Конкурентный Complete успел раньше.
	current, rerr := s.store.GetSubscription(ctx, sub.ID)
	if rerr != nil {
		return nil, false, storageErr(rerr)
	}
	if current.Status == target {
		return current, false, nil
	}
	return nil, false, storageErr(err)
}

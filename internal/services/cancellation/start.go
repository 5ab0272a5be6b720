package cancellation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/pricing"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-cancellation/internal/metrics"
	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
	"github.com/magabrotheeeer/subscription-cancellation/internal/storage"
)

// cachedAttempt - неизменяемая часть попытки, которую можно держать в кеше.
type cachedAttempt struct {
	AttemptID string         `json:"attempt_id"`
	Variant   models.Variant `json:"variant"`
}

func attemptCacheKey(subscriptionID string) string {
	return "cancellation:attempt:" + subscriptionID
}

// StartFlow запускает поток отмены: переводит подписку в pending_cancellation
// и возвращает закреплённое за ней плечо эксперимента. Повторные и конкурентные
// вызовы для одной подписки возвращают одну и ту же попытку.
// Если subscriptionID пуст, берётся последняя активная подписка пользователя.
func (s *Service) StartFlow(ctx context.Context, userID, subscriptionID string) (*models.FlowStart, error) {
	const op = "cancellation.StartFlow"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	sub, err := s.resolveSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	log = log.With(slog.String("subscription_id", sub.ID))

	if !models.CanTransition(sub.Status, models.StatusPendingCancellation) {
		return nil, fmt.Errorf("%w: subscription is %s", ErrValidation, sub.Status)
	}

	if err := s.store.MarkPendingCancellation(ctx, sub.ID, s.now()); err != nil {
		switch {
		case errors.Is(err, storage.ErrStatusConflict):
			// Попытка завершена или подписка ушла из active: закреплённое плечо больше не нужно.
			if cerr := s.cache.Invalidate(ctx, attemptCacheKey(sub.ID)); cerr != nil {
				log.Warn("failed to invalidate attempt cache", sl.Err(cerr))
			}
			return nil, fmt.Errorf("%w: subscription cannot be cancelled: %w", ErrValidation, err)
		case errors.Is(err, storage.ErrSubscriptionNotFound):
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		log.Error("failed to mark subscription pending", sl.Err(err))
		return nil, storageErr(err)
	}

	attempt, err := s.resolveAttempt(ctx, log, sub)
	if err != nil {
		return nil, err
	}

	return &models.FlowStart{
		AttemptID:      attempt.AttemptID,
		SubscriptionID: sub.ID,
		Variant:        attempt.Variant,
		BasePriceMinor: sub.MonthlyPrice,
		BasePrice:      pricing.ToMajor(sub.MonthlyPrice),
		OfferPrice:     pricing.ToMajor(pricing.PriceForVariant(sub.MonthlyPrice, attempt.Variant)),
	}, nil
}

func (s *Service) resolveSubscription(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	var (
		sub *models.Subscription
		err error
	)
	if subscriptionID == "" {
		sub, err = s.store.FindLatestActiveSubscription(ctx, userID)
	} else {
		sub, err = s.store.GetSubscription(ctx, subscriptionID)
	}
	if err != nil {
		if errors.Is(err, storage.ErrSubscriptionNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, storageErr(err)
	}
	if sub.UserID != userID {
		return nil, fmt.Errorf("%w: subscription belongs to another user", ErrForbidden)
	}
	return sub, nil
}

// resolveAttempt возвращает существующую попытку или создаёт новую со случайным плечом.
// Проигравший гонку вставки отбрасывает свой жребий и перечитывает строку победителя.
func (s *Service) resolveAttempt(ctx context.Context, log *slog.Logger, sub *models.Subscription) (cachedAttempt, error) {
	key := attemptCacheKey(sub.ID)

	var cached cachedAttempt
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Warn("failed to read attempt from cache", slog.String("key", key), sl.Err(err))
	}
	if found && cached.AttemptID != "" && cached.Variant.Valid() {
		return cached, nil
	}

	attempt, err := s.store.GetAttemptBySubscription(ctx, sub.ID)
	switch {
	case errors.Is(err, storage.ErrAttemptNotFound):
		attempt, err = s.createAttempt(ctx, log, sub)
		if err != nil {
			return cachedAttempt{}, err
		}
	case err != nil:
		log.Error("failed to read attempt", sl.Err(err))
		return cachedAttempt{}, storageErr(err)
	}

	// Схема не допускает попытку без плеча, поэтому повторный жребий здесь не делается.
	if !attempt.Variant.Valid() {
		log.Error("attempt has no valid variant", slog.String("attempt_id", attempt.ID))
		return cachedAttempt{}, fmt.Errorf("%w: attempt %s has invalid variant %q", ErrStorage, attempt.ID, attempt.Variant)
	}

	cached = cachedAttempt{AttemptID: attempt.ID, Variant: attempt.Variant}
	if err := s.cache.Set(ctx, key, cached, s.cacheTTL); err != nil {
		log.Warn("failed to cache attempt", slog.String("key", key), sl.Err(err))
	}
	return cached, nil
}

func (s *Service) createAttempt(ctx context.Context, log *slog.Logger, sub *models.Subscription) (*models.CancellationAttempt, error) {
	variant, err := s.drawVariant()
	if err != nil {
		log.Error("failed to draw variant", sl.Err(err))
		return nil, fmt.Errorf("draw variant: %w", err)
	}

	created, err := s.store.InsertAttempt(ctx, models.CancellationAttempt{
		ID:             s.newID(),
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Variant:        variant,
		CreatedAt:      s.now(),
	})
	if err == nil {
		metrics.VariantAssignments.WithLabelValues(string(created.Variant)).Inc()
		log.Info("variant assigned", slog.String("attempt_id", created.ID), slog.String("variant", string(created.Variant)))
		return created, nil
	}
	if !errors.Is(err, storage.ErrAttemptExists) {
		log.Error("failed to insert attempt", sl.Err(err))
		return nil, storageErr(err)
	}

	metrics.AssignmentConflicts.Inc()
	log.Info("attempt created concurrently, re-reading")
	existing, err := s.store.GetAttemptBySubscription(ctx, sub.ID)
	if err != nil {
		log.Error("failed to re-read attempt after conflict", sl.Err(err))
		return nil, storageErr(err)
	}
	return existing, nil
}

// drawVariant тянет один несмещённый бит из криптографического источника: 0 -> A, 1 -> B.
func (s *Service) drawVariant() (models.Variant, error) {
	var b [1]byte
	if _, err := io.ReadFull(s.rand, b[:]); err != nil {
		return "", err
	}
	if b[0]&1 == 0 {
		return models.VariantA, nil
	}
	return models.VariantB, nil
}

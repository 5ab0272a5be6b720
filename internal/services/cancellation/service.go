// Package cancellation содержит бизнес-логику потока отмены подписки:
// закрепление плеча эксперимента за подпиской и финализацию попытки.
package cancellation

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
)

// Store определяет методы хранилища подписок и попыток отмены.
type Store interface {
	// GetSubscription возвращает подписку по ID.
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	// FindLatestActiveSubscription возвращает самую свежую активную подписку пользователя.
	FindLatestActiveSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	// MarkPendingCancellation идемпотентно переводит подписку в pending_cancellation.
	MarkPendingCancellation(ctx context.Context, id string, at time.Time) error
	// ApplyDownsell возвращает подписку в active с новой ценой.
	ApplyDownsell(ctx context.Context, id string, oldPrice, newPrice int64, at time.Time) error
	// Cancel отменяет подписку.
	Cancel(ctx context.Context, id string, at time.Time) error
	// GetAttempt возвращает попытку отмены по ID.
	GetAttempt(ctx context.Context, id string) (*models.CancellationAttempt, error)
	// GetAttemptBySubscription возвращает попытку отмены подписки.
	GetAttemptBySubscription(ctx context.Context, subscriptionID string) (*models.CancellationAttempt, error)
	// InsertAttempt создаёт попытку, если её ещё нет, иначе возвращает storage.ErrAttemptExists.
	InsertAttempt(ctx context.Context, a models.CancellationAttempt) (*models.CancellationAttempt, error)
	// SaveAnswers записывает ответы и время завершения попытки.
	SaveAnswers(ctx context.Context, id string, answers models.Answers, completedAt time.Time) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет ключ из кеша.
	Invalidate(ctx context.Context, key string) error
}

// Notifier публикует уведомления о финализированных попытках.
type Notifier interface {
	Publish(ctx context.Context, event models.CancellationEvent) error
}

// NopNotifier используется, когда брокер сообщений не настроен.
type NopNotifier struct{}

// Publish ничего не делает.
func (NopNotifier) Publish(context.Context, models.CancellationEvent) error { return nil }

// Service реализует запуск и финализацию потока отмены.
type Service struct {
	store    Store
	cache    Cache
	notifier Notifier
	log      *slog.Logger
	cacheTTL time.Duration

	rand  io.Reader
	now   func() time.Time
	newID func() string
}

// NewService создает новый экземпляр Service.
func NewService(store Store, cache Cache, notifier Notifier, log *slog.Logger, cacheTTL time.Duration) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		notifier: notifier,
		log:      log,
		cacheTTL: cacheTTL,
		rand:     rand.Reader,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

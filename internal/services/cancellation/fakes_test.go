package cancellation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
	"github.com/magabrotheeeer/subscription-cancellation/internal/storage"
)

var errDBDown = errors.New("connection refused")

// memStore повторяет семантику storage.Storage в памяти, включая уникальность попытки на подписку.
type memStore struct {
	mu       sync.Mutex
	subs     map[string]models.Subscription
	attempts map[string]models.CancellationAttempt
	bySub    map[string]string

	failCancel int
	failApply  int
}

func newMemStore() *memStore {
	return &memStore{
		subs:     make(map[string]models.Subscription),
		attempts: make(map[string]models.CancellationAttempt),
		bySub:    make(map[string]string),
	}
}

func (m *memStore) addSubscription(sub models.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
}

func (m *memStore) subscription(id string) models.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[id]
}

func (m *memStore) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

func (m *memStore) GetSubscription(_ context.Context, id string) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, fmt.Errorf("mem: %w", storage.ErrSubscriptionNotFound)
	}
	return &sub, nil
}

func (m *memStore) FindLatestActiveSubscription(_ context.Context, userID string) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Subscription
	for _, sub := range m.subs {
		if sub.UserID != userID || sub.Status != models.StatusActive {
			continue
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			s := sub
			latest = &s
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("mem: %w", storage.ErrSubscriptionNotFound)
	}
	return latest, nil
}

func (m *memStore) MarkPendingCancellation(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return storage.ErrSubscriptionNotFound
	}
	switch sub.Status {
	case models.StatusPendingCancellation:
	case models.StatusActive:
		if attemptID, ok := m.bySub[id]; ok && m.attempts[attemptID].Completed() {
			return storage.ErrStatusConflict
		}
	default:
		return storage.ErrStatusConflict
	}
	sub.Status = models.StatusPendingCancellation
	if sub.CancelRequestedAt == nil {
		sub.CancelRequestedAt = &at
	}
	m.subs[id] = sub
	return nil
}

func (m *memStore) ApplyDownsell(_ context.Context, id string, oldPrice, newPrice int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failApply > 0 {
		m.failApply--
		return errDBDown
	}
	sub, ok := m.subs[id]
	if !ok {
		return storage.ErrSubscriptionNotFound
	}
	if sub.Status != models.StatusPendingCancellation || sub.MonthlyPrice != oldPrice {
		return storage.ErrStatusConflict
	}
	sub.Status = models.StatusActive
	sub.MonthlyPrice = newPrice
	m.subs[id] = sub
	return nil
}

func (m *memStore) Cancel(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCancel > 0 {
		m.failCancel--
		return errDBDown
	}
	sub, ok := m.subs[id]
	if !ok {
		return storage.ErrSubscriptionNotFound
	}
	if sub.Status != models.StatusPendingCancellation {
		return storage.ErrStatusConflict
	}
	sub.Status = models.StatusCancelled
	sub.CancelledAt = &at
	m.subs[id] = sub
	return nil
}

func (m *memStore) GetAttempt(_ context.Context, id string) (*models.CancellationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, storage.ErrAttemptNotFound
	}
	return &a, nil
}

func (m *memStore) GetAttemptBySubscription(_ context.Context, subscriptionID string) (*models.CancellationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bySub[subscriptionID]
	if !ok {
		return nil, storage.ErrAttemptNotFound
	}
	a := m.attempts[id]
	return &a, nil
}

func (m *memStore) InsertAttempt(_ context.Context, a models.CancellationAttempt) (*models.CancellationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bySub[a.SubscriptionID]; ok {
		return nil, storage.ErrAttemptExists
	}
	m.attempts[a.ID] = a
	m.bySub[a.SubscriptionID] = a.ID
	return &a, nil
}

func (m *memStore) SaveAnswers(_ context.Context, id string, answers models.Answers, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return storage.ErrAttemptNotFound
	}
	if a.Completed() {
		return nil
	}
	a.Answers = answers
	a.CompletedAt = &completedAt
	m.attempts[id] = a
	return nil
}

// memCache - потокобезопасный кеш в памяти, хранит значения как есть.
type memCache struct {
	mu   sync.Mutex
	data map[string]cachedAttempt
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]cachedAttempt)}
}

func (c *memCache) Get(_ context.Context, key string, result any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return false, nil
	}
	*(result.(*cachedAttempt)) = v
	return true, nil
}

func (c *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value.(cachedAttempt)
	return nil
}

func (c *memCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.CancellationEvent
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, event models.CancellationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) published() []models.CancellationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.CancellationEvent(nil), n.events...)
}

type StoreMock struct{ mock.Mock }

func (m *StoreMock) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *StoreMock) FindLatestActiveSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *StoreMock) MarkPendingCancellation(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *StoreMock) ApplyDownsell(ctx context.Context, id string, oldPrice, newPrice int64, at time.Time) error {
	return m.Called(ctx, id, oldPrice, newPrice, at).Error(0)
}

func (m *StoreMock) Cancel(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *StoreMock) GetAttempt(ctx context.Context, id string) (*models.CancellationAttempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CancellationAttempt), args.Error(1)
}

func (m *StoreMock) GetAttemptBySubscription(ctx context.Context, subscriptionID string) (*models.CancellationAttempt, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CancellationAttempt), args.Error(1)
}

func (m *StoreMock) InsertAttempt(ctx context.Context, a models.CancellationAttempt) (*models.CancellationAttempt, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CancellationAttempt), args.Error(1)
}

func (m *StoreMock) SaveAnswers(ctx context.Context, id string, answers models.Answers, completedAt time.Time) error {
	return m.Called(ctx, id, answers, completedAt).Error(0)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

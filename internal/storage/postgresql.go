// Package storage реализует хранилище подписок и попыток отмены на основе PostgreSQL.
// Все переходы статуса подписки выполняются условными UPDATE, поэтому повторные
// вызовы не применяют эффект дважды.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
)

var (
	// ErrSubscriptionNotFound возвращается, если подписка не найдена.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrAttemptNotFound возвращается, если попытка отмены не найдена.
	ErrAttemptNotFound = errors.New("cancellation attempt not found")
	// ErrAttemptExists возвращается, если попытка для подписки уже создана другим запросом.
	ErrAttemptExists = errors.New("cancellation attempt already exists")
	// ErrStatusConflict возвращается, если текущий статус подписки не допускает перехода.
	ErrStatusConflict = errors.New("subscription status does not allow transition")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_name = 'cancellations'
	)`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("storage.CheckDatabaseReady: %w", err)
	}
	if !exists {
		return errors.New("storage.CheckDatabaseReady: required table cancellations missing")
	}
	return nil
}

// ===== SUBSCRIPTION METHODS =====

const subscriptionColumns = `id, user_id, status, monthly_price, cancel_requested_at, cancelled_at, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var (
		sub         models.Subscription
		requestedAt sql.NullTime
		cancelledAt sql.NullTime
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Status, &sub.MonthlyPrice,
		&requestedAt, &cancelledAt, &sub.CreatedAt); err != nil {
		return nil, err
	}
	if requestedAt.Valid {
		sub.CancelRequestedAt = &requestedAt.Time
	}
	if cancelledAt.Valid {
		sub.CancelledAt = &cancelledAt.Time
	}
	return &sub, nil
}

// GetSubscription возвращает подписку по её ID.
func (s *Storage) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// FindLatestActiveSubscription возвращает самую свежую активную подписку пользователя.
func (s *Storage) FindLatestActiveSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.FindLatestActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_id = $1 AND status = $2
			  ORDER BY created_at DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID, models.StatusActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// MarkPendingCancellation переводит подписку в pending_cancellation.
// Повторный вызов для подписки в pending_cancellation ничего не меняет,
// время запроса фиксируется только первый раз. Активная подписка с уже
// завершённой попыткой отмены повторно не открывается.
func (s *Storage) MarkPendingCancellation(ctx context.Context, id string, at time.Time) error {
	const op = "storage.MarkPendingCancellation"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions s
			  SET status = $2,
			      cancel_requested_at = COALESCE(s.cancel_requested_at, $3),
			      updated_at = $3
			  WHERE s.id = $1
			    AND (s.status = $2
			         OR (s.status = $4 AND NOT EXISTS (
			             SELECT 1 FROM cancellations c
			             WHERE c.subscription_id = s.id AND c.completed_at IS NOT NULL)))`
	result, err := s.DB.ExecContext(ctx, query, id, models.StatusPendingCancellation, at, models.StatusActive)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.expectOneRow(ctx, op, result, id)
}

// ApplyDownsell возвращает подписку из pending_cancellation в active с новой ценой.
// oldPrice защищает от повторного применения скидки конкурентным запросом.
func (s *Storage) ApplyDownsell(ctx context.Context, id string, oldPrice, newPrice int64, at time.Time) error {
	const op = "storage.ApplyDownsell"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $2, monthly_price = $3, updated_at = $4
			  WHERE id = $1 AND status = $5 AND monthly_price = $6`
	result, err := s.DB.ExecContext(ctx, query,
		id, models.StatusActive, newPrice, at, models.StatusPendingCancellation, oldPrice)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.expectOneRow(ctx, op, result, id)
}

// Cancel переводит подписку из pending_cancellation в cancelled.
func (s *Storage) Cancel(ctx context.Context, id string, at time.Time) error {
	const op = "storage.Cancel"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $2, cancelled_at = $3, updated_at = $3
			  WHERE id = $1 AND status = $4`
	result, err := s.DB.ExecContext(ctx, query,
		id, models.StatusCancelled, at, models.StatusPendingCancellation)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.expectOneRow(ctx, op, result, id)
}

// expectOneRow различает отсутствие подписки и неподходящий статус, если UPDATE ничего не изменил.
func (s *Storage) expectOneRow(ctx context.Context, op string, result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected > 0 {
		return nil
	}
	var exists bool
	if err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	return fmt.Errorf("%s: %w", op, ErrStatusConflict)
}

// ===== CANCELLATION ATTEMPT METHODS =====

const attemptColumns = `id, subscription_id, user_id, downsell_variant, accepted_downsell, reason,
	found_with_platform, applied_range, emailed_range, interviewed_range,
	has_company_lawyer, visa_name, cancel_reason, other_reason_text, created_at, completed_at`

func scanAttempt(row interface{ Scan(...any) error }) (*models.CancellationAttempt, error) {
	var (
		a                 models.CancellationAttempt
		reason            sql.NullString
		foundWithPlatform sql.NullBool
		applied           sql.NullString
		emailed           sql.NullString
		interviewed       sql.NullString
		hasCompanyLawyer  sql.NullBool
		visaName          sql.NullString
		cancelReason      sql.NullString
		otherText         sql.NullString
		completedAt       sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.SubscriptionID, &a.UserID, &a.Variant, &a.Answers.AcceptedDownsell,
		&reason, &foundWithPlatform, &applied, &emailed, &interviewed,
		&hasCompanyLawyer, &visaName, &cancelReason, &otherText, &a.CreatedAt, &completedAt); err != nil {
		return nil, err
	}

	a.Answers.FreeTextReason = reason.String
	a.Answers.VisaName = visaName.String
	a.Answers.OtherText = otherText.String
	if foundWithPlatform.Valid {
		a.Answers.FoundViaPlatform = &foundWithPlatform.Bool
	}
	if hasCompanyLawyer.Valid {
		a.Answers.HasCompanyLawyer = &hasCompanyLawyer.Bool
	}
	if applied.Valid || emailed.Valid || interviewed.Valid {
		a.Answers.Usage = &models.UsageBuckets{
			Applied:     applied.String,
			Emailed:     emailed.String,
			Interviewed: interviewed.String,
		}
	}
	if cancelReason.Valid {
		r := models.CancelReason(cancelReason.String)
		a.Answers.CancelReason = &r
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return &a, nil
}

// GetAttempt возвращает попытку отмены по её ID.
func (s *Storage) GetAttempt(ctx context.Context, id string) (*models.CancellationAttempt, error) {
	const op = "storage.GetAttempt"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + attemptColumns + ` FROM cancellations WHERE id = $1`
	a, err := scanAttempt(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrAttemptNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// GetAttemptBySubscription возвращает попытку отмены подписки.
func (s *Storage) GetAttemptBySubscription(ctx context.Context, subscriptionID string) (*models.CancellationAttempt, error) {
	const op = "storage.GetAttemptBySubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + attemptColumns + ` FROM cancellations WHERE subscription_id = $1`
	a, err := scanAttempt(s.DB.QueryRowContext(ctx, query, subscriptionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrAttemptNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// InsertAttempt создаёт попытку отмены, если для подписки её ещё нет.
// Если строка уже существует, возвращается ErrAttemptExists и вызывающий перечитывает её.
func (s *Storage) InsertAttempt(ctx context.Context, a models.CancellationAttempt) (*models.CancellationAttempt, error) {
	const op = "storage.InsertAttempt"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO cancellations (id, subscription_id, user_id, downsell_variant, created_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (subscription_id) DO NOTHING
			  RETURNING ` + attemptColumns
	created, err := scanAttempt(s.DB.QueryRowContext(ctx, query,
		a.ID, a.SubscriptionID, a.UserID, a.Variant, a.CreatedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrAttemptExists)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, ErrAttemptExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// SaveAnswers записывает ответы и время завершения попытки.
// Завершённая попытка не меняется: повторный вызов для неё ничего не пишет и возвращает nil.
func (s *Storage) SaveAnswers(ctx context.Context, id string, answers models.Answers, completedAt time.Time) error {
	const op = "storage.SaveAnswers"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var applied, emailed, interviewed sql.NullString
	if answers.Usage != nil {
		applied = nullString(answers.Usage.Applied)
		emailed = nullString(answers.Usage.Emailed)
		interviewed = nullString(answers.Usage.Interviewed)
	}
	var cancelReason sql.NullString
	if answers.CancelReason != nil {
		cancelReason = nullString(string(*answers.CancelReason))
	}

	query := `UPDATE cancellations
			  SET accepted_downsell = $2, reason = $3, found_with_platform = $4,
			      applied_range = $5, emailed_range = $6, interviewed_range = $7,
			      has_company_lawyer = $8, visa_name = $9, cancel_reason = $10,
			      other_reason_text = $11, completed_at = $12
			  WHERE id = $1 AND completed_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query, id,
		answers.AcceptedDownsell, nullString(answers.FreeTextReason), nullBool(answers.FoundViaPlatform),
		applied, emailed, interviewed,
		nullBool(answers.HasCompanyLawyer), nullString(answers.VisaName), cancelReason,
		nullString(answers.OtherText), completedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	err = s.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM cancellations WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, ErrAttemptNotFound)
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

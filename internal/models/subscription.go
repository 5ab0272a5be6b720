// Package models содержит доменные структуры потока отмены подписки:
// подписку, попытку отмены, ответы опроса и DTO для JSON-запросов.
package models

import "time"

// Status описывает биллинговое состояние подписки.
type Status string

const (
	// StatusActive - подписка активна и оплачивается.
	StatusActive Status = "active"
	// StatusPendingCancellation - пользователь начал поток отмены.
	StatusPendingCancellation Status = "pending_cancellation"
	// StatusCancelled - подписка отменена.
	StatusCancelled Status = "cancelled"
)

// Transition - пара состояний from -> to.
type Transition struct {
	From Status
	To   Status
}

var validTransitions = map[Transition]bool{
	{StatusActive, StatusPendingCancellation}:    true,
	{StatusPendingCancellation, StatusActive}:    true, // downsell принят
	{StatusPendingCancellation, StatusCancelled}: true,
}

// CanTransition сообщает, допустим ли переход статуса.
// Повторная запись того же статуса считается допустимой (идемпотентна).
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return validTransitions[Transition{From: from, To: to}]
}

// Subscription представляет подписку пользователя.
// Цена хранится в минимальных единицах валюты (центах).
type Subscription struct {
	ID                string
	UserID            string
	Status            Status
	MonthlyPrice      int64
	CancelRequestedAt *time.Time
	CancelledAt       *time.Time
	CreatedAt         time.Time
}

package models

// StartRequest используется для приёма JSON-запроса на запуск потока отмены.
// Если SubscriptionID не передан, берётся последняя активная подписка пользователя.
type StartRequest struct {
	UserID         string `json:"user_id,omitempty" validate:"omitempty,uuid"`
	SubscriptionID string `json:"subscription_id,omitempty" validate:"omitempty,uuid"`
}

// FlowStart - результат запуска потока: закреплённое плечо и цены.
type FlowStart struct {
	AttemptID      string  `json:"attempt_id"`
	SubscriptionID string  `json:"subscription_id"`
	Variant        Variant `json:"variant"`
	// BasePriceMinor - цена подписки в центах, в JSON не отдаётся.
	BasePriceMinor int64   `json:"-"`
	BasePrice      float64 `json:"base_price"`
	OfferPrice     float64 `json:"offer_price"`
}

// CompleteRequest используется для приёма JSON-запроса на финализацию попытки.
type CompleteRequest struct {
	AttemptID string  `json:"attempt_id" validate:"required,uuid"`
	UserID    string  `json:"user_id,omitempty" validate:"omitempty,uuid"`
	Answers   Answers `json:"answers"`
}

package models

import "time"

// Variant - плечо A/B эксперимента, закрепляемое за подпиской один раз.
type Variant string

const (
	// VariantA - контрольная группа, скидки нет.
	VariantA Variant = "A"
	// VariantB - группа со скидкой.
	VariantB Variant = "B"
)

// Valid сообщает, является ли значение известным плечом эксперимента.
func (v Variant) Valid() bool {
	return v == VariantA || v == VariantB
}

// CancelReason - код причины отмены.
type CancelReason string

const (
	ReasonTooExpensive       CancelReason = "too_expensive"
	ReasonPlatformNotHelpful CancelReason = "platform_not_helpful"
	ReasonNotEnoughJobs      CancelReason = "not_enough_jobs"
	ReasonDecidedNotToMove   CancelReason = "decided_not_to_move"
	ReasonOther              CancelReason = "other"
)

// Valid сообщает, входит ли код в фиксированный список причин.
func (r CancelReason) Valid() bool {
	switch r {
	case ReasonTooExpensive, ReasonPlatformNotHelpful, ReasonNotEnoughJobs,
		ReasonDecidedNotToMove, ReasonOther:
		return true
	}
	return false
}

// Допустимые значения корзин использования платформы.
var (
	AppliedBuckets     = []string{"0", "1-5", "6-20", "20+"}
	EmailedBuckets     = []string{"0", "1-5", "6-20", "20+"}
	InterviewedBuckets = []string{"0", "1-2", "3-5", "5+"}
)

// UsageBuckets - ответы на три вопроса об использовании платформы.
type UsageBuckets struct {
	Applied     string `json:"applied" validate:"omitempty,oneof=0 1-5 6-20 20+"`
	Emailed     string `json:"emailed" validate:"omitempty,oneof=0 1-5 6-20 20+"`
	Interviewed string `json:"interviewed" validate:"omitempty,oneof=0 1-2 3-5 5+"`
}

// Complete сообщает, что даны все три ответа.
func (u UsageBuckets) Complete() bool {
	return u.Applied != "" && u.Emailed != "" && u.Interviewed != ""
}

// Answers - итоговый набор ответов, который сохраняется при завершении потока.
type Answers struct {
	AcceptedDownsell bool          `json:"accepted_downsell"`
	FreeTextReason   string        `json:"reason,omitempty" validate:"max=4000"`
	FoundViaPlatform *bool         `json:"found_via_platform"`
	Usage            *UsageBuckets `json:"usage,omitempty"`
	HasCompanyLawyer *bool         `json:"has_company_lawyer"`
	VisaName         string        `json:"visa_name,omitempty" validate:"max=255"`
	CancelReason     *CancelReason `json:"cancel_reason,omitempty" validate:"omitempty,oneof=too_expensive platform_not_helpful not_enough_jobs decided_not_to_move other"`
	OtherText        string        `json:"other_text,omitempty" validate:"max=4000"`
}

// CancellationAttempt - долговременная запись попытки отмены подписки.
// На одну подписку существует не более одной записи, Variant после записи не меняется.
type CancellationAttempt struct {
	ID             string
	SubscriptionID string
	UserID         string
	Variant        Variant
	Answers        Answers
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// Completed сообщает, была ли попытка уже финализирована.
func (a CancellationAttempt) Completed() bool {
	return a.CompletedAt != nil
}

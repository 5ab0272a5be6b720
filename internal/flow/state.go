// Package flow реализует конечный автомат потока отмены подписки.
//
// Автомат чистый: Transition(state, event) возвращает новое состояние и эффект,
// не обращаясь к хранилищу. Состояние живёт у клиента и передаётся целиком на каждом шаге.
package flow

import (
	"strings"
	"unicode/utf8"

	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/bucket"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/pricing"
	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
)

// MinDetailsLength - минимальная длина текста причины на шаге enter_details (после trim).
const MinDetailsLength = 25

// Step - идентификатор шага потока.
type Step string

const (
	StepIntro               Step = "intro"
	StepReasonYes           Step = "reason_yes"
	StepReasonNo            Step = "reason_no"
	StepEnterDetails        Step = "enter_details"
	StepSecureVisa          Step = "secure_visa"
	StepCancelReason        Step = "cancel_reason"
	StepDownsellSuccess     Step = "downsell_success"
	StepCancellationSuccess Step = "cancellation_success"
	StepGoodbye             Step = "goodbye"
	StepDone                Step = "done"
)

// Terminal сообщает, является ли шаг конечным.
func (s Step) Terminal() bool {
	switch s {
	case StepDownsellSuccess, StepCancellationSuccess, StepGoodbye, StepDone:
		return true
	}
	return false
}

// Valid сообщает, известен ли шаг.
func (s Step) Valid() bool {
	switch s {
	case StepIntro, StepReasonYes, StepReasonNo, StepEnterDetails, StepSecureVisa,
		StepCancelReason, StepDownsellSuccess, StepCancellationSuccess, StepGoodbye, StepDone:
		return true
	}
	return false
}

// YesNo - ответ да/нет, пустая строка означает "ещё не отвечено".
type YesNo string

const (
	Unanswered YesNo = ""
	Yes        YesNo = "yes"
	No         YesNo = "no"
)

func (a YesNo) ptr() *bool {
	switch a {
	case Yes:
		v := true
		return &v
	case No:
		v := false
		return &v
	}
	return nil
}

// State - накопленные ответы и текущий шаг.
type State struct {
	Step Step `json:"step"`

	// Seed - стабильный ключ гейта показа предложения (id попытки).
	Seed      string         `json:"seed" validate:"required,uuid"`
	Variant   models.Variant `json:"variant"`
	BasePrice int64          `json:"base_price_minor"`

	FromDownsell     bool `json:"from_downsell"`
	AcceptedDownsell bool `json:"accepted_downsell"`
	Finalized        bool `json:"finalized"`

	FoundJob         YesNo               `json:"found_job"`
	FoundViaPlatform YesNo               `json:"found_via_platform"`
	Usage            models.UsageBuckets `json:"usage"`
	Details          string              `json:"details"`
	HasCompanyLawyer YesNo               `json:"has_company_lawyer"`
	VisaName         string              `json:"visa_name"`
	CancelReason     models.CancelReason `json:"cancel_reason"`
	OtherText        string              `json:"other_text"`
}

// New создаёт начальное состояние для попытки с закреплённым плечом и базовой ценой.
func New(attemptID string, variant models.Variant, basePrice int64) State {
	return State{
		Step:      StepIntro,
		Seed:      attemptID,
		Variant:   variant,
		BasePrice: basePrice,
	}
}

// ShowOffer - гейт показа предложения на шаге reason_no.
func (s State) ShowOffer() bool {
	return bucket.Half(s.Seed)
}

// OfferPrice - цена предложения для закреплённого плеча.
func (s State) OfferPrice() int64 {
	return pricing.PriceForVariant(s.BasePrice, s.Variant)
}

// CanContinue сообщает, выполнены ли условия перехода дальше с текущего шага.
func (s State) CanContinue() bool {
	switch s.Step {
	case StepReasonYes:
		if s.FromDownsell {
			return s.Usage.Complete()
		}
		switch s.FoundViaPlatform {
		case Yes:
			return s.Usage.Complete()
		case No:
			return true
		}
		return false
	case StepEnterDetails:
		return utf8.RuneCountInString(strings.TrimSpace(s.Details)) >= MinDetailsLength
	case StepSecureVisa:
		return s.HasCompanyLawyer != Unanswered && strings.TrimSpace(s.VisaName) != ""
	case StepCancelReason:
		if !s.CancelReason.Valid() {
			return false
		}
		if s.CancelReason == models.ReasonOther {
			return strings.TrimSpace(s.OtherText) != ""
		}
		return true
	}
	return false
}

// Answers проецирует состояние в набор ответов для финализации.
func (s State) Answers() models.Answers {
	a := models.Answers{
		AcceptedDownsell: s.AcceptedDownsell,
		FreeTextReason:   strings.TrimSpace(s.Details),
		FoundViaPlatform: s.FoundViaPlatform.ptr(),
		HasCompanyLawyer: s.HasCompanyLawyer.ptr(),
		VisaName:         strings.TrimSpace(s.VisaName),
		OtherText:        strings.TrimSpace(s.OtherText),
	}
	if s.Usage != (models.UsageBuckets{}) {
		usage := s.Usage
		a.Usage = &usage
	}
	if s.CancelReason != "" {
		reason := s.CancelReason
		a.CancelReason = &reason
	}
	return a
}

package flow

import (
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/pricing"
	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
)

// View - то, что клиент должен показать на текущем шаге.
type View struct {
	Step                Step     `json:"step"`
	Terminal            bool     `json:"terminal"`
	CanContinue         bool     `json:"can_continue"`
	CanGoBack           bool     `json:"can_go_back"`
	AskFoundViaPlatform bool     `json:"ask_found_via_platform"`
	AskUsage            bool     `json:"ask_usage"`
	ShowOffer           bool     `json:"show_offer"`
	OfferPrice          *float64 `json:"offer_price,omitempty"`
	CompareAtPrice      *float64 `json:"compare_at_price,omitempty"`
	DetailsMinLength    int      `json:"details_min_length,omitempty"`
	AskVisaName         bool     `json:"ask_visa_name"`
	RequireOtherText    bool     `json:"require_other_text"`
	AcceptedPrice       *float64 `json:"accepted_price,omitempty"`
}

// Render строит View для состояния.
func Render(s State) View {
	v := View{
		Step:        s.Step,
		Terminal:    s.Step.Terminal(),
		CanContinue: s.CanContinue(),
	}

	switch s.Step {
	case StepReasonNo:
		v.CanGoBack = true
		v.ShowOffer = s.ShowOffer()
	case StepReasonYes:
		v.CanGoBack = true
		v.AskFoundViaPlatform = !s.FromDownsell
		v.AskUsage = s.FromDownsell || s.FoundViaPlatform == Yes
		v.ShowOffer = s.FromDownsell && s.ShowOffer()
	case StepEnterDetails:
		v.CanGoBack = true
		v.DetailsMinLength = MinDetailsLength
	case StepSecureVisa:
		v.CanGoBack = true
		v.AskVisaName = s.HasCompanyLawyer != Unanswered
	case StepCancelReason:
		v.CanGoBack = true
		v.RequireOtherText = s.CancelReason == models.ReasonOther
	case StepDownsellSuccess:
		accepted := pricing.ToMajor(pricing.AcceptedDownsellPrice(s.BasePrice))
		v.AcceptedPrice = &accepted
	}

	if v.ShowOffer {
		offer := pricing.ToMajor(s.OfferPrice())
		base := pricing.ToMajor(s.BasePrice)
		v.OfferPrice = &offer
		v.CompareAtPrice = &base
	}
	return v
}

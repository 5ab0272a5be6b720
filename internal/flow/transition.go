package flow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
)

var (
	// ErrInvalidState возвращается, если состояние клиента не распознано.
	ErrInvalidState = errors.New("invalid flow state")
	// ErrUnknownEvent возвращается для неизвестного типа события.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrEventNotAllowed возвращается, если событие недопустимо на текущем шаге.
	ErrEventNotAllowed = errors.New("event not allowed at this step")
	// ErrInvalidAnswer возвращается для ответа вне допустимого набора.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrCannotContinue возвращается, если условия перехода не выполнены.
	ErrCannotContinue = errors.New("step is not complete")
	// ErrOfferUnavailable возвращается при попытке принять непоказанное предложение.
	ErrOfferUnavailable = errors.New("offer is not available")
)

// EventType - тип события автомата.
type EventType string

const (
	EventAnswerFoundJob         EventType = "answer_found_job"
	EventAnswerFoundViaPlatform EventType = "answer_found_via_platform"
	EventSetUsage               EventType = "set_usage"
	EventAcceptOffer            EventType = "accept_offer"
	EventDeclineOffer           EventType = "decline_offer"
	EventSetDetails             EventType = "set_details"
	EventAnswerLawyer           EventType = "answer_lawyer"
	EventSetVisaName            EventType = "set_visa_name"
	EventSelectReason           EventType = "select_reason"
	EventSetOtherText           EventType = "set_other_text"
	EventContinue               EventType = "continue"
	EventBack                   EventType = "back"
	EventFinish                 EventType = "finish"
)

// UsageField - один из трёх вопросов об использовании платформы.
type UsageField string

const (
	UsageApplied     UsageField = "applied"
	UsageEmailed     UsageField = "emailed"
	UsageInterviewed UsageField = "interviewed"
)

// Event - действие пользователя. Значимые поля зависят от Type.
type Event struct {
	Type   EventType           `json:"type"`
	Answer YesNo               `json:"answer,omitempty"`
	Field  UsageField          `json:"field,omitempty"`
	Value  string              `json:"value,omitempty"`
	Text   string              `json:"text,omitempty"`
	Reason models.CancelReason `json:"reason,omitempty"`
}

// Effect - побочное действие, которое должен выполнить вызывающий код.
type Effect struct {
	// Finalize - нужно вызвать финализацию попытки с ответами из состояния.
	Finalize bool
}

// Validate проверяет, что состояние пришло в известной форме.
func (s State) Validate() error {
	if !s.Step.Valid() {
		return fmt.Errorf("%w: unknown step %q", ErrInvalidState, s.Step)
	}
	if !s.Variant.Valid() {
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidState, s.Variant)
	}
	if s.Seed == "" {
		return fmt.Errorf("%w: empty seed", ErrInvalidState)
	}
	return nil
}

// Transition применяет событие к состоянию.
// При ошибке возвращается исходное состояние без изменений.
func Transition(s State, e Event) (State, Effect, error) {
	if err := s.Validate(); err != nil {
		return s, Effect{}, err
	}

	next, effect, err := apply(s, e)
	if err != nil {
		return s, Effect{}, fmt.Errorf("%s/%s: %w", s.Step, e.Type, err)
	}
	return next, effect, nil
}

func apply(s State, e Event) (State, Effect, error) {
	switch e.Type {
	case EventBack:
		return back(s)
	case EventContinue:
		return forward(s)
	case EventFinish:
		return finish(s)
	case EventAnswerFoundJob, EventAnswerFoundViaPlatform, EventSetUsage, EventAcceptOffer,
		EventDeclineOffer, EventSetDetails, EventAnswerLawyer, EventSetVisaName,
		EventSelectReason, EventSetOtherText:
	default:
		return s, Effect{}, ErrUnknownEvent
	}

	switch s.Step {
	case StepIntro:
		return onIntro(s, e)
	case StepReasonYes:
		return onReasonYes(s, e)
	case StepReasonNo:
		return onReasonNo(s, e)
	case StepEnterDetails:
		if e.Type != EventSetDetails {
			return s, Effect{}, ErrEventNotAllowed
		}
		s.Details = e.Text
		return s, Effect{}, nil
	case StepSecureVisa:
		return onSecureVisa(s, e)
	case StepCancelReason:
		return onCancelReason(s, e)
	}
	return s, Effect{}, ErrEventNotAllowed
}

func onIntro(s State, e Event) (State, Effect, error) {
	if e.Type != EventAnswerFoundJob {
		return s, Effect{}, ErrEventNotAllowed
	}
	if e.Answer != Yes && e.Answer != No {
		return s, Effect{}, ErrInvalidAnswer
	}
	if s.FoundJob != e.Answer {
		s = clearBranches(s)
	}
	s.FoundJob = e.Answer
	s.FromDownsell = false
	s.AcceptedDownsell = false
	if e.Answer == Yes {
		s.Step = StepReasonYes
	} else {
		s.Step = StepReasonNo
	}
	return s, Effect{}, nil
}

func onReasonYes(s State, e Event) (State, Effect, error) {
	switch e.Type {
	case EventAnswerFoundViaPlatform:
		if s.FromDownsell {
			return s, Effect{}, ErrEventNotAllowed
		}
		if e.Answer != Yes && e.Answer != No {
			return s, Effect{}, ErrInvalidAnswer
		}
		if s.FoundViaPlatform != e.Answer {
			s.Usage = models.UsageBuckets{}
		}
		s.FoundViaPlatform = e.Answer
		return s, Effect{}, nil
	case EventSetUsage:
		if !s.FromDownsell && s.FoundViaPlatform != Yes {
			return s, Effect{}, ErrEventNotAllowed
		}
		return setUsage(s, e.Field, e.Value)
	case EventAcceptOffer:
		if !s.FromDownsell {
			return s, Effect{}, ErrEventNotAllowed
		}
		return acceptOffer(s)
	}
	return s, Effect{}, ErrEventNotAllowed
}

func onReasonNo(s State, e Event) (State, Effect, error) {
	switch e.Type {
	case EventAcceptOffer:
		return acceptOffer(s)
	case EventDeclineOffer:
		s.AcceptedDownsell = false
		s.FromDownsell = true
		s.Step = StepReasonYes
		return s, Effect{}, nil
	}
	return s, Effect{}, ErrEventNotAllowed
}

func onSecureVisa(s State, e Event) (State, Effect, error) {
	switch e.Type {
	case EventAnswerLawyer:
		if e.Answer != Yes && e.Answer != No {
			return s, Effect{}, ErrInvalidAnswer
		}
		if s.HasCompanyLawyer != e.Answer {
			s.VisaName = ""
		}
		s.HasCompanyLawyer = e.Answer
		return s, Effect{}, nil
	case EventSetVisaName:
		if s.HasCompanyLawyer == Unanswered {
			return s, Effect{}, ErrEventNotAllowed
		}
		s.VisaName = e.Text
		return s, Effect{}, nil
	}
	return s, Effect{}, ErrEventNotAllowed
}

func onCancelReason(s State, e Event) (State, Effect, error) {
	switch e.Type {
	case EventSelectReason:
		if e.Reason != "" && !e.Reason.Valid() {
			return s, Effect{}, ErrInvalidAnswer
		}
		if s.CancelReason != e.Reason {
			s.OtherText = ""
		}
		s.CancelReason = e.Reason
		return s, Effect{}, nil
	case EventSetOtherText:
		if s.CancelReason == "" {
			return s, Effect{}, ErrEventNotAllowed
		}
		s.OtherText = e.Text
		return s, Effect{}, nil
	}
	return s, Effect{}, ErrEventNotAllowed
}

func setUsage(s State, field UsageField, value string) (State, Effect, error) {
	switch field {
	case UsageApplied:
		if !slices.Contains(models.AppliedBuckets, value) {
			return s, Effect{}, ErrInvalidAnswer
		}
		s.Usage.Applied = value
	case UsageEmailed:
		if !slices.Contains(models.EmailedBuckets, value) {
			return s, Effect{}, ErrInvalidAnswer
		}
		s.Usage.Emailed = value
	case UsageInterviewed:
		if !slices.Contains(models.InterviewedBuckets, value) {
			return s, Effect{}, ErrInvalidAnswer
		}
		s.Usage.Interviewed = value
	default:
		return s, Effect{}, ErrInvalidAnswer
	}
	return s, Effect{}, nil
}

func acceptOffer(s State) (State, Effect, error) {
	if !s.ShowOffer() {
		return s, Effect{}, ErrOfferUnavailable
	}
	s.AcceptedDownsell = true
	s.Step = StepDownsellSuccess
	return s, Effect{}, nil
}

func forward(s State) (State, Effect, error) {
	var target Step
	switch s.Step {
	case StepReasonYes:
		if s.FromDownsell {
			target = StepCancelReason
		} else {
			target = StepEnterDetails
		}
	case StepEnterDetails:
		target = StepSecureVisa
	case StepSecureVisa:
		target = StepCancellationSuccess
	case StepCancelReason:
		target = StepGoodbye
	default:
		return s, Effect{}, ErrEventNotAllowed
	}
	if !s.CanContinue() {
		return s, Effect{}, ErrCannotContinue
	}
	s.Step = target
	return s, Effect{}, nil
}

// back возвращает на предыдущий шаг, ответы при этом сохраняются.
func back(s State) (State, Effect, error) {
	switch s.Step {
	case StepReasonYes:
		if s.FromDownsell {
			s.Step = StepReasonNo
		} else {
			s.Step = StepIntro
		}
	case StepReasonNo:
		s.Step = StepIntro
	case StepEnterDetails:
		s.Step = StepReasonYes
	case StepSecureVisa:
		s.Step = StepEnterDetails
	case StepCancelReason:
		s.Step = StepReasonYes
	default:
		return s, Effect{}, ErrEventNotAllowed
	}
	return s, Effect{}, nil
}

// finish финализирует поток на конечном шаге. Повторный вызов после финализации ничего не делает.
func finish(s State) (State, Effect, error) {
	if !s.Step.Terminal() {
		return s, Effect{}, ErrEventNotAllowed
	}
	if s.Finalized {
		return s, Effect{}, nil
	}
	s.Step = StepDone
	s.Finalized = true
	return s, Effect{Finalize: true}, nil
}

// clearBranches сбрасывает ответы всех шагов после intro.
func clearBranches(s State) State {
	s.FoundViaPlatform = Unanswered
	s.Usage = models.UsageBuckets{}
	s.Details = ""
	s.HasCompanyLawyer = Unanswered
	s.VisaName = ""
	s.CancelReason = ""
	s.OtherText = ""
	return s
}

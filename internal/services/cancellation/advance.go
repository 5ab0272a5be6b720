package cancellation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscription-cancellation/internal/flow"
	"github.com/magabrotheeeer/subscription-cancellation/internal/metrics"
)

// Advance применяет событие к состоянию потока. Если переход требует финализации,
// вызывается Complete с ответами из нового состояния; при ошибке клиенту
// возвращается исходное состояние, чтобы он мог повторить событие finish.
func (s *Service) Advance(ctx context.Context, userID string, state flow.State, event flow.Event) (flow.State, flow.View, error) {
	const op = "cancellation.Advance"
	log := s.log.With(slog.String("op", op), slog.String("attempt_id", state.Seed))

	if !canonicalUUID(state.Seed) {
		return state, flow.Render(state), fmt.Errorf("%w: seed must be a canonical attempt id", ErrValidation)
	}

	next, effect, err := flow.Transition(state, event)
	if err != nil {
		return state, flow.Render(state), fmt.Errorf("%w: %w", ErrValidation, err)
	}
	metrics.FlowTransitions.WithLabelValues(string(state.Step), string(event.Type)).Inc()
	log.Debug("flow transition", slog.String("from", string(state.Step)), slog.String("to", string(next.Step)))

	if effect.Finalize {
		if err := s.Complete(ctx, state.Seed, userID, next.Answers()); err != nil {
			return state, flow.Render(state), err
		}
	}
	return next, flow.Render(next), nil
}

// canonicalUUID сообщает, записан ли id в каноническом виде (нижний регистр, с дефисами).
// Гейт показа предложения хешируется по строке, поэтому другие записи того же uuid недопустимы.
func canonicalUUID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

// Package cancellation содержит общую для обработчиков потока отмены
// классификацию ошибок сервиса в HTTP-статусы.
package cancellation

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-cancellation/internal/http/response"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/sl"
	service "github.com/magabrotheeeer/subscription-cancellation/internal/services/cancellation"
)

// StatusFor возвращает HTTP-статус и безопасное для клиента сообщение для ошибки сервиса.
func StatusFor(err error) (int, string) {
	var completeErr *service.CompleteError
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.As(err, &completeErr) && completeErr.AnswersSaved:
		return http.StatusInternalServerError, "answers saved but subscription was not updated, retry completion"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// WriteError пишет ответ с ошибкой сервиса. Серверные ошибки логируются на уровне Error,
// клиентские на уровне Warn.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", sl.Err(err))
	} else {
		log.Warn("request rejected", slog.Int("status", status), sl.Err(err))
	}
	w.WriteHeader(status)
	render.JSON(w, r, response.Error(msg))
}

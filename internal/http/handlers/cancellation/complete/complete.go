// Package complete реализует HTTP-обработчик финализации попытки отмены.
package complete

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-cancellation/internal/http/handlers/cancellation"
	"github.com/magabrotheeeer/subscription-cancellation/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-cancellation/internal/http/response"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
)

// Handler управляет HTTP-запросами на финализацию попытки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики финализации.
type Service interface {
	Complete(ctx context.Context, attemptID, userID string, answers models.Answers) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cancellation.complete"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	if req.UserID != "" && req.UserID != userUID {
		log.Warn("user id in body does not match token", slog.String("user_id", userUID))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("forbidden"))
		return
	}

	if err := h.service.Complete(r.Context(), req.AttemptID, userUID, req.Answers); err != nil {
		cancellation.WriteError(w, r, log.With(slog.String("attempt_id", req.AttemptID)), err)
		return
	}

	log.Info("cancellation attempt completed", slog.String("attempt_id", req.AttemptID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"success": true,
	}))
}

// Package start реализует HTTP-обработчик запуска потока отмены подписки.
//
// Handler берёт ID пользователя из контекста (его кладёт JWT middleware), переводит подписку
// в pending_cancellation и возвращает закреплённое плечо эксперимента, цены и начальное состояние потока.
package start

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-cancellation/internal/flow"
	"github.com/magabrotheeeer/subscription-cancellation/internal/http/handlers/cancellation"
	"github.com/magabrotheeeer/subscription-cancellation/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-cancellation/internal/http/response"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
)

// Handler управляет HTTP-запросами на запуск потока отмены.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики запуска потока.
type Service interface {
	StartFlow(ctx context.Context, userID, subscriptionID string) (*models.FlowStart, error)
}

// Response - тело успешного ответа.
type Response struct {
	*models.FlowStart
	State flow.State `json:"state"`
	View  flow.View  `json:"view"`
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
	const op = "handlers.cancellation.start"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
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

	started, err := h.service.StartFlow(r.Context(), userUID, req.SubscriptionID)
	if err != nil {
		cancellation.WriteError(w, r, log, err)
		return
	}

	state := flow.New(started.AttemptID, started.Variant, started.BasePriceMinor)
	log.Info("cancellation flow started",
		slog.String("attempt_id", started.AttemptID),
		slog.String("variant", string(started.Variant)),
	)
	render.JSON(w, r, response.OKWithData(Response{
		FlowStart: started,
		State:     state,
		View:      flow.Render(state),
	}))
}

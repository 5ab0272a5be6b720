// Package step реализует HTTP-обработчик одного шага потока отмены.
//
// Клиент присылает текущее состояние и событие, сервер применяет переход и
// возвращает новое состояние вместе с описанием экрана. Если переход завершает
// поток, ответы сохраняются через сервис; при ошибке состояние клиента не меняется.
package step

import (
	"context"
	"encoding/json"
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
)

// Handler управляет HTTP-запросами шагов потока.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс применения события к состоянию.
type Service interface {
	Advance(ctx context.Context, userID string, state flow.State, event flow.Event) (flow.State, flow.View, error)
}

// Request - тело запроса шага.
type Request struct {
	State flow.State `json:"state"`
	Event flow.Event `json:"event"`
}

// Response - новое состояние и экран для него.
type Response struct {
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
	const op = "handlers.cancellation.step"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Warn("invalid request", sl.Err(err))
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

	next, view, err := h.service.Advance(r.Context(), userUID, req.State, req.Event)
	if err != nil {
		cancellation.WriteError(w, r, log.With(slog.String("attempt_id", req.State.Seed)), err)
		return
	}

	render.JSON(w, r, response.OKWithData(Response{
		State: next,
		View:  view,
	}))
}

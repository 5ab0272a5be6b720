// Package health отдаёт состояние сервиса и его зависимостей.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-cancellation/internal/http/response"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/sl"
)

// CheckFunc проверяет готовность зависимости.
type CheckFunc func(ctx context.Context) error

// Handler отвечает на запросы проверки здоровья.
type Handler struct {
	log   *slog.Logger
	check CheckFunc
}

// New создаёт Handler. check может быть nil, тогда проверяется только сам процесс.
func New(log *slog.Logger, check CheckFunc) *Handler {
	return &Handler{
		log:   log,
		check: check,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.check(ctx); err != nil {
			h.log.Error("dependency is not ready", slog.String("op", op), sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("database is not ready"))
			return
		}
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
	}))
}

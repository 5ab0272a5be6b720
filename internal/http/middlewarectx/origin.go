package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-cancellation/internal/http/response"
)

// OriginMiddleware отклоняет запросы, у которых заголовок Origin не совпадает с allowedOrigin.
// Подключается только в окружении prod.
func OriginMiddleware(log *slog.Logger, allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != allowedOrigin {
				log.Warn("bad origin", slog.String("origin", origin))
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error("bad origin"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

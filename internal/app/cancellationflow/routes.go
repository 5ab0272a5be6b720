// Package cancellationflow собирает HTTP-приложение потока отмены подписки.
package cancellationflow

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/subscription-cancellation/internal/config"
	"github.com/magabrotheeeer/subscription-cancellation/internal/http/handlers/cancellation/complete"
	"github.com/magabrotheeeer/subscription-cancellation/internal/http/handlers/cancellation/start"
	"github.com/magabrotheeeer/subscription-cancellation/internal/http/handlers/cancellation/step"
	"github.com/magabrotheeeer/subscription-cancellation/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-cancellation/internal/http/middlewarectx"
)

// FlowService объединяет операции сервиса, нужные обработчикам.
type FlowService interface {
	start.Service
	complete.Service
	step.Service
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, service FlowService, tokens middlewarectx.TokenParser, ready health.CheckFunc) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.New(logger, ready).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			if cfg.IsProd() {
				r.Use(middlewarectx.OriginMiddleware(logger, cfg.AllowedOrigin))
			}
			r.Use(middlewarectx.JWTMiddleware(tokens, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RPS, cfg.Burst))
			r.Post("/cancellations/start", start.New(logger, service).ServeHTTP)
			r.Post("/cancellations/complete", complete.New(logger, service).ServeHTTP)
			r.Post("/cancellations/flow/step", step.New(logger, service).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
}

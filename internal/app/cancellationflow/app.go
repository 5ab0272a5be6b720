package cancellationflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/subscription-cancellation/internal/cache"
	"github.com/magabrotheeeer/subscription-cancellation/internal/config"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-cancellation/internal/migrations"
	"github.com/magabrotheeeer/subscription-cancellation/internal/services/cancellation"
	"github.com/magabrotheeeer/subscription-cancellation/internal/storage"
)

// App держит HTTP-сервер и ресурсы, которые нужно закрыть при остановке.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	db      *storage.Storage
	closers []io.Closer
}

// New поднимает хранилище, применяет миграции, подключает Redis и RabbitMQ и собирает роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	app := &App{logger: logger, db: db}

	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		app.close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		app.close()
		return nil, err
	}
	app.closers = append(app.closers, cacheRedis)

	notifier, err := app.initNotifier(cfg)
	if err != nil {
		app.close()
		return nil, err
	}

	service := cancellation.NewService(db, cacheRedis, notifier, logger, cfg.AttemptCacheTTL)
	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, service, tokens, func(ctx context.Context) error {
		return storage.CheckDatabaseReady(ctx, db)
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// initNotifier подключается к RabbitMQ. Без URL уведомления отключены.
func (a *App) initNotifier(cfg *config.Config) (cancellation.Notifier, error) {
	if cfg.RabbitMQ.URL == "" {
		a.logger.Warn("rabbitmq url is not set, notifications are disabled")
		return cancellation.NopNotifier{}, nil
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn)

	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.GetNotificationQueues())
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch, cfg.Exchange)
	// Канал закрывается раньше соединения.
	a.closers = append(a.closers, publisher)
	return publisher, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("failed to close resource", sl.Err(err))
		}
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}

// Package notifier собирает воркер, который потребляет события отмены из RabbitMQ.
package notifier

import (
	"context"
	"errors"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-cancellation/internal/config"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-cancellation/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-cancellation/internal/services/notification"
)

// App держит соединение с брокером и сервис обработки событий.
type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	service *notification.Service
	logger  *slog.Logger
}

// New подключается к RabbitMQ и объявляет exchange и очереди уведомлений.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQ.URL == "" {
		return nil, errors.New("notifier.New: rabbitmq url is not set")
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &App{
		conn:    conn,
		ch:      ch,
		service: notification.NewService(logger),
		logger:  logger,
	}, nil
}

// Run потребляет все очереди уведомлений до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	for _, q := range rabbitmq.GetNotificationQueues() {
		if err := rabbitmq.ConsumeMessages(ctx, a.ch, q.QueueName, a.logger, a.service.HandleCancellationEvent); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), sl.Err(err))
			a.close()
			return err
		}
	}

	<-ctx.Done()
	a.logger.Info("notifier shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}

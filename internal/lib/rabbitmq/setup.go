package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-cancellation/internal/models"
)

// Ключи маршрутизации событий потока отмены.
const (
	RoutingKeyCancellationCompleted = "cancellation.completed"
	RoutingKeyDownsellAccepted      = "downsell.accepted"
)

// QueueConfig описывает очередь и ключ, с которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди для потребителей событий отмены.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.cancellation_completed", RoutingKey: RoutingKeyCancellationCompleted},
		{QueueName: "notifications.downsell_accepted", RoutingKey: RoutingKeyDownsellAccepted},
	}
}

// RoutingKey возвращает ключ маршрутизации для исхода попытки.
func RoutingKey(outcome models.Outcome) string {
	if outcome == models.OutcomeDownsellAccepted {
		return RoutingKeyDownsellAccepted
	}
	return RoutingKeyCancellationCompleted
}

// SetupChannel открывает канал, объявляет direct-обменник exchange и привязывает к нему очереди.
// Брокер отдаёт потребителю канала не больше maxInFlight неподтверждённых сообщений.
func SetupChannel(conn *amqp.Connection, exchange string, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = ch.Qos(maxInFlight, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set qos: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(q.QueueName, q.RoutingKey, exchange, false, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}

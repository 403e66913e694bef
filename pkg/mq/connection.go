package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ExchangeName 业务事件的 topic exchange
const ExchangeName = "projectflow.events"

// Routing keys
const (
	RoutingNotificationCreated = "notification.created"
)

// 启动时 broker 可能还没就绪（compose 同时拉起），连接按固定间隔重试
const dialAttempts = 5

var (
	dial        = amqp091.Dial
	dialBackoff = 2 * time.Second
)

// NewConnection 连接 RabbitMQ，失败时重试 dialAttempts 次
func NewConnection(url string) (*amqp091.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt < dialAttempts {
			time.Sleep(dialBackoff * time.Duration(attempt))
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", dialAttempts, lastErr)
}

func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// declareBoundQueue 声明持久队列并绑定到 exchange
func declareBoundQueue(ch *amqp091.Channel, queueName, routingKey, exchange string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind queue %s: %w", queueName, err)
	}
	return q, nil
}

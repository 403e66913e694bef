package mq

import (
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// DLQExchangeName 死信 exchange，队列名为 <routing key>.dlq
const DLQExchangeName = "projectflow.events.dlq"

// 死信消息头
const (
	HeaderOriginalError = "x-original-error"
	HeaderFailedBy      = "x-failed-by"
	HeaderFailedAt      = "x-failed-at"
)

func DeclareDLQExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		DLQExchangeName,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

func DeclareDLQQueue(ch *amqp091.Channel, routingKey string) (amqp091.Queue, error) {
	return declareBoundQueue(ch, routingKey+".dlq", routingKey, DLQExchangeName)
}

// dlqHeaders 在原消息头基础上追加失败信息，原有同名头被覆盖
func dlqHeaders(orig amqp091.Table, reason, consumer string, now time.Time) amqp091.Table {
	headers := amqp091.Table{}
	for k, v := range orig {
		headers[k] = v
	}
	headers[HeaderOriginalError] = reason
	headers[HeaderFailedBy] = consumer
	headers[HeaderFailedAt] = now.UTC().Format(time.RFC3339)
	return headers
}

// publishToDLQ 把无法处理的消息转入死信队列
func publishToDLQ(ch *amqp091.Channel, routingKey string, msg amqp091.Delivery, reason, consumer string) error {
	return ch.Publish(
		DLQExchangeName,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         msg.Body,
			DeliveryMode: amqp091.Persistent,
			Headers:      dlqHeaders(msg.Headers, reason, consumer, time.Now()),
		},
	)
}

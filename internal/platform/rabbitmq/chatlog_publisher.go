package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"doccopilot/internal/model"
)

// ChatLogPublisher enqueues chat transcripts for asynchronous persistence.
type ChatLogPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewChatLogPublisher(conn *amqp.Connection, queueName string) *ChatLogPublisher {
	return &ChatLogPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *ChatLogPublisher) Publish(ctx context.Context, entry model.ChatLog) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal chat log payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish chat log failed: %w", err)
	}
	return nil
}

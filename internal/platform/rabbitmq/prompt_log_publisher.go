package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"aidesk/internal/model"
)

type PromptLogPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewPromptLogPublisher(conn *amqp.Connection, queueName string) *PromptLogPublisher {
	return &PromptLogPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *PromptLogPublisher) Publish(ctx context.Context, entry model.PromptLog) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal prompt log payload failed: %w", err)
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
		return fmt.Errorf("publish prompt log failed: %w", err)
	}
	return nil
}

package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/listopadhq/listopad/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunQueued     MessageType = "run.queued"
	MessageTypeStatusChanged MessageType = "run.status_changed"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunQueuedPayload — payload для сообщения о run в очереди.
type RunQueuedPayload struct {
	RunID         uuid.UUID `json:"run_id"`
	TargetID      uuid.UUID `json:"target_id"`
	DirectorySlug string    `json:"directory_slug"`
	AttemptNo     int       `json:"attempt_no"`
}

// StatusChangedPayload — payload для сообщения о переходе статуса.
type StatusChangedPayload struct {
	RunID    uuid.UUID            `json:"run_id"`
	TargetID uuid.UUID            `json:"target_id"`
	From     domain.Status        `json:"from"`
	To       domain.Status        `json:"to"`
	Reason   *domain.StatusReason `json:"reason,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunQueued публикует событие о run, ожидающем воркера.
// Потребитель: Worker.
func (p *Publisher) PublishRunQueued(ctx context.Context, payload RunQueuedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunQueued,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyQueued, msg)
}

// PublishStatusChanged публикует событие о переходе статуса run.
// Потребители: нотификации, внешние интеграции.
func (p *Publisher) PublishStatusChanged(ctx context.Context, payload StatusChangedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeStatusChanged,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyStatus, msg)
}

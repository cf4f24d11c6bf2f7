package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/veresk/storyforge/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

// Типы команд.
const (
	MessageTypeRunStart         MessageType = "run.start"
	MessageTypeRunPause         MessageType = "run.pause"
	MessageTypeRunResume        MessageType = "run.resume"
	MessageTypeRunStop          MessageType = "run.stop"
	MessageTypeDownloadsEnqueue MessageType = "downloads.enqueue"
)

// Типы событий.
const (
	MessageTypeProgress           MessageType = "progress"
	MessageTypeLog                MessageType = "log"
	MessageTypeError              MessageType = "error"
	MessageTypeDownloadProgress   MessageType = "download.progress"
	MessageTypeDownloadComplete   MessageType = "download.complete"
	MessageTypeGenerationComplete MessageType = "generation.complete"
)

// Message — конверт сообщения.
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

// RunStartPayload — payload команды запуска прогона.
type RunStartPayload struct {
	SessionID string                `json:"session_id,omitempty"`
	Prompts   []string              `json:"prompts"`
	Asset     domain.ReferenceAsset `json:"asset"`
	Settings  domain.Settings       `json:"settings"`
}

// DownloadsEnqueuePayload — payload команды постановки скачиваний.
type DownloadsEnqueuePayload struct {
	Artifacts []domain.Artifact `json:"artifacts"`
	Prefix    string            `json:"prefix"`
	DelayMs   int               `json:"delay_ms"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
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
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
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

// PublishCommand публикует команду в обменник команд.
func (p *Publisher) PublishCommand(ctx context.Context, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeCommands, RoutingKey(msgType), msg)
}

// PublishEvent публикует событие в fanout-обменник событий.
//
// Routing key у fanout игнорируется; если слушателей нет,
// событие теряется — для отправителя это не ошибка.
func (p *Publisher) PublishEvent(ctx context.Context, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeEvents, "", msg)
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload после Unmarshal конверта — map или raw json
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AMQPChannel is the subset of *amqp.Channel the mirror needs.
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher mirrors notifications to a fanout exchange for consumers
// outside the web tier, such as kitchen printers.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       AMQPChannel
	exchange string
}

func NewAMQPPublisher(ch AMQPChannel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

// DialAMQP connects and declares the durable fanout exchange.
func DialAMQP(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("realtime: failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("realtime: failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("realtime: failed to declare exchange %s: %w", exchange, err)
	}

	return conn, ch, nil
}

func messageID(orderID uuid.UUID, version int64, kind Kind) string {
	return fmt.Sprintf("%s:%d:%s", orderID, version, kind)
}

func (p *AMQPPublisher) Publish(ctx context.Context, n Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", n.OrderID).Msg("realtime: failed to encode notification")
		return
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID(n.OrderID, n.Version, n.Kind),
		Type:         string(n.Kind),
		Timestamp:    n.OccurredAt,
		Headers: amqp.Table{
			"restaurant_id": n.RestaurantID.String(),
			"status":        n.Status,
		},
		Body: body,
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(pubCtx, p.exchange, "", false, false, msg); err != nil {
		log.Error().Err(err).
			Str("exchange", p.exchange).
			Stringer("order_id", n.OrderID).
			Msg("realtime: failed to mirror notification to amqp")
	}
}

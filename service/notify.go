package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"expensight/analytics"
	"expensight/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// SnapshotEvent announces that a user's analysis changed. Consumers fetch the snapshot
// themselves; the event carries only what is needed to decide whether to.
type SnapshotEvent struct {
	UserID      uint                `json:"user_id"`
	Signature   string              `json:"signature"`
	Previous    string              `json:"previous_signature,omitempty"`
	Range       analytics.DateRange `json:"range"`
	Total       float64             `json:"total"`
	Currency    string              `json:"currency"`
	OverBudget  []string            `json:"over_budget"`
	PublishedAt time.Time           `json:"published_at"`
}

// NewSnapshotEvent builds the event for snap.
func NewSnapshotEvent(userID uint, previous string, snap *analytics.Snapshot) *SnapshotEvent {
	return &SnapshotEvent{
		UserID:      userID,
		Signature:   snap.Signature,
		Previous:    previous,
		Range:       snap.Range,
		Total:       snap.Total,
		Currency:    snap.Currency,
		OverBudget:  snap.Budget.OverBudget,
		PublishedAt: time.Now(),
	}
}

// ToJSON encodes the event.
func (e *SnapshotEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SnapshotEventFromJSON decodes an event.
func SnapshotEventFromJSON(data []byte) (*SnapshotEvent, error) {
	var e SnapshotEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Publisher delivers snapshot change events.
type Publisher interface {
	PublishSnapshotChanged(ctx context.Context, evt *SnapshotEvent) error
	Close() error
}

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a durable direct exchange.
type AMQPPublisher struct {
	conn       *amqp.Connection
	channel    amqpChannel
	exchange   string
	routingKey string
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(cfg config.AMQPConfig) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPPublisher{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
	}, nil
}

// PublishSnapshotChanged sends evt as a persistent JSON message.
func (p *AMQPPublisher) PublishSnapshotChanged(ctx context.Context, evt *SnapshotEvent) error {
	body, err := evt.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    evt.PublishedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	log.Printf("published snapshot event user=%d signature=%.12s exchange=%s", evt.UserID, evt.Signature, p.exchange)
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

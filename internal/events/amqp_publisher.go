package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// amqpChannel is the subset of *amqp091.Channel used for publishing
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	IsClosed() bool
	Close() error
}

// connectFunc opens a connection and a channel with the topology declared
type connectFunc func() (io.Closer, amqpChannel, error)

// AMQPPublisher publishes events as persistent JSON messages on a durable direct exchange.
// A channel closed by the broker is re-dialed on the next Publish.
type AMQPPublisher struct {
	connect      connectFunc
	conn         io.Closer
	mu           sync.Mutex
	channel      amqpChannel
	exchangeName string
	routingKey   string
	logger       zerolog.Logger
}

// NewAMQPPublisher dials the broker and declares the exchange, queue and binding
func NewAMQPPublisher(url, exchangeName, queueName string, logger zerolog.Logger) (*AMQPPublisher, error) {
	connect := func() (io.Closer, amqpChannel, error) {
		return dial(url, exchangeName, queueName)
	}

	conn, channel, err := connect()
	if err != nil {
		return nil, err
	}

	p := newAMQPPublisher(channel, exchangeName, queueName, logger)
	p.conn = conn
	p.connect = connect
	return p, nil
}

func newAMQPPublisher(channel amqpChannel, exchangeName, routingKey string, logger zerolog.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		channel:      channel,
		exchangeName: exchangeName,
		routingKey:   routingKey,
		logger:       logger.With().Str("component", "amqp_publisher").Logger(),
	}
}

func dial(url, exchangeName, queueName string) (io.Closer, amqpChannel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(channel, exchangeName, queueName); err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return conn, channel, nil
}

func declareTopology(channel *amqp091.Channel, exchangeName, queueName string) error {
	err := channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name for a direct exchange
	if err := channel.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish sends the event to the exchange
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		if err := p.reconnectLocked(); err != nil {
			return fmt.Errorf("reconnect AMQP: %w", err)
		}
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchangeName,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.Timestamp,
			Type:         event.Type,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	p.logger.Debug().
		Str("type", event.Type).
		Int64("user_id", event.UserID).
		Str("exchange", p.exchangeName).
		Msg("Published event")
	return nil
}

// reconnectLocked replaces a closed channel and its connection. Caller holds p.mu.
func (p *AMQPPublisher) reconnectLocked() error {
	if p.connect == nil {
		return errors.New("channel closed")
	}

	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.channel, p.conn = nil, nil

	conn, channel, err := p.connect()
	if err != nil {
		return err
	}
	p.conn, p.channel = conn, channel

	p.logger.Info().Str("exchange", p.exchangeName).Msg("Reconnected to AMQP broker")
	return nil
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

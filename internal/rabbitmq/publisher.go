package rabbitmq

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

type publisher struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	mu           sync.Mutex
}

// NewPublisher connects to RabbitMQ and declares exchangeName as a durable topic exchange.
func NewPublisher(amqpURL, exchangeName string) (Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	p := &publisher{conn: conn, channel: ch, exchangeName: exchangeName}
	go p.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))
	return p, nil
}

// watch drops the channel once the broker closes the connection so later
// publishes fail fast with amqp.ErrClosed.
func (p *publisher) watch(closed <-chan *amqp.Error) {
	err, ok := <-closed
	if !ok {
		return
	}
	log.Printf("warning: RabbitMQ connection for %s closed: %v", p.exchangeName, err)
	p.mu.Lock()
	p.channel = nil
	p.conn = nil
	p.mu.Unlock()
}

// Dial returns a publisher for exchangeName, or a no-op publisher when amqpURL
// is empty or the broker cannot be reached.
func Dial(amqpURL, exchangeName string) Publisher {
	if amqpURL == "" {
		log.Printf("warning: AMQP_URL not set; publishing to %s disabled", exchangeName)
		return NewNoopPublisher()
	}
	pub, err := NewPublisher(amqpURL, exchangeName)
	if err != nil {
		log.Printf("warning: failed to initialize RabbitMQ publisher for %s: %v", exchangeName, err)
		return NewNoopPublisher()
	}
	return pub
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops events.
func NewNoopPublisher() Publisher { return &noopPublisher{} }

func (n *noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return nil
}

func (n *noopPublisher) Close() error { return nil }

func (p *publisher) Publish(ctx context.Context, routingKey string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return amqp.ErrClosed
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.channel.PublishWithContext(ctx,
		p.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Type:         routingKey,
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
}

func (p *publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"story-server/internal/interfaces"
	"story-server/internal/models"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var _ interfaces.StoryEventPublisher = (*rabbitStoryEventPublisher)(nil)

// amqpChannel - часть *amqp091.Channel, нужная издателю.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// rabbitStoryEventPublisher публикует события каталога в durable очередь.
type rabbitStoryEventPublisher struct {
	mu        sync.Mutex
	ch        amqpChannel
	queueName string
	logger    *zap.Logger
}

// NewRabbitStoryEventPublisher открывает канал и объявляет очередь queueName.
func NewRabbitStoryEventPublisher(conn *amqp091.Connection, queueName string, logger *zap.Logger) (*rabbitStoryEventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection is nil")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("story event publisher: failed to open channel: %w", err)
	}
	p, err := newStoryEventPublisher(ch, queueName, logger)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return p, nil
}

func newStoryEventPublisher(ch amqpChannel, queueName string, logger *zap.Logger) (*rabbitStoryEventPublisher, error) {
	_, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("story event publisher: failed to declare queue '%s': %w", queueName, err)
	}

	p := &rabbitStoryEventPublisher{
		ch:        ch,
		queueName: queueName,
		logger:    logger.Named("StoryEventPublisher").With(zap.String("queue", queueName)),
	}
	p.logger.Info("Story event publisher initialized")
	return p, nil
}

// PublishStoryEvent сериализует событие в JSON и кладет его в очередь.
func (p *rabbitStoryEventPublisher) PublishStoryEvent(ctx context.Context, event models.StoryEvent) error {
	log := p.logger.With(
		zap.String("type", string(event.Type)),
		zap.String("storyID", event.StoryID.String()),
	)

	body, err := json.Marshal(event)
	if err != nil {
		log.Error("Failed to marshal story event", zap.Error(err))
		return fmt.Errorf("failed to marshal story event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Type:         string(event.Type),
			Body:         body,
		},
	)
	if err != nil {
		log.Error("Failed to publish story event", zap.Error(err))
		return fmt.Errorf("failed to publish story event: %w", err)
	}

	log.Debug("Story event published")
	return nil
}

// Close закрывает канал издателя.
func (p *rabbitStoryEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}

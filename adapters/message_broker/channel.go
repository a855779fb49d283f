package message_broker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

const topicBuffer = 100

var (
	ErrBrokerClosed = errors.New("message broker is closed")
	ErrTopicFull    = errors.New("topic channel is full")
)

// ChannelMessageBroker implements MessageBroker using Go channels. Each
// topic/routing key pair is one buffered channel with a single consumer.
type ChannelMessageBroker struct {
	topics map[string]chan domain.Message
	mu     sync.Mutex
	closed bool
	now    func() time.Time
}

func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		topics: make(map[string]chan domain.Message),
		now:    time.Now,
	}
}

func makeKey(topic, routingKey string) string {
	return topic + ":" + routingKey
}

// channel returns the channel for key, creating it if needed. Caller holds mu.
func (b *ChannelMessageBroker) channel(key string) chan domain.Message {
	ch, ok := b.topics[key]
	if !ok {
		ch = make(chan domain.Message, topicBuffer)
		b.topics[key] = ch
	}
	return ch
}

// Publish never blocks: a full topic drops the message with ErrTopicFull.
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := domain.Message{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  b.now(),
	}

	select {
	case b.channel(makeKey(topic, routingKey)) <- msg:
		log.WithCtx(ctx).Debug("message published",
			zap.String("topic", topic),
			zap.String("routing_key", routingKey),
			zap.Int("payload_size", len(message)))
		return nil
	default:
		return errors.Wrapf(ErrTopicFull, "%s:%s", topic, routingKey)
	}
}

func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	ch := b.channel(makeKey(topic, routingKey))
	log.WithCtx(ctx).Info("subscribed to topic", zap.String("topic", topic), zap.String("routing_key", routingKey))
	return ch, nil
}

// Close closes every topic channel, ending all subscriber loops.
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, ch := range b.topics {
		close(ch)
	}
	log.With(zap.Int("topics", len(b.topics))).Info("message broker closed")
	b.topics = make(map[string]chan domain.Message)
	return nil
}

package domaintest

import (
	"context"
	"sync"
	"time"

	"github.com/centralrestaurante/amigo-central/domain"
)

// Broker records published payloads.
type Broker struct {
	mu        sync.Mutex
	Published []domain.Message
	Err       error
}

var _ domain.MessageBroker = (*Broker)(nil)

func (b *Broker) Publish(_ context.Context, topic, routingKey string, message []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.Published = append(b.Published, domain.Message{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	})
	return nil
}

func (b *Broker) Subscribe(context.Context, string, string) (<-chan domain.Message, error) {
	return make(chan domain.Message), nil
}

func (b *Broker) Close() error { return nil }

func (b *Broker) Messages() []domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Message(nil), b.Published...)
}

// Transcriber returns a fixed transcript.
type Transcriber struct {
	Transcript string
	Err        error
	Calls      int
}

func (t *Transcriber) Transcribe(context.Context, []byte, string) (string, error) {
	t.Calls++
	return t.Transcript, t.Err
}

// Synthesizer returns a fixed clip.
type Synthesizer struct {
	Audio []byte
	Err   error
}

func (s *Synthesizer) Synthesize(context.Context, string) ([]byte, error) {
	return s.Audio, s.Err
}

// Directory is an unbounded, never-expiring SessionDirectory.
type Directory struct {
	mu    sync.Mutex
	convs map[string]*domain.Conversation
}

var _ domain.SessionDirectory = (*Directory)(nil)

func NewDirectory() *Directory {
	return &Directory{convs: map[string]*domain.Conversation{}}
}

func (d *Directory) GetOrCreate(ctx context.Context, sessionID string, create domain.ConversationFactory) (*domain.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if conv, ok := d.convs[sessionID]; ok {
		return conv, nil
	}
	conv, err := create(ctx)
	if err != nil {
		return nil, err
	}
	conv.ID = sessionID
	d.convs[sessionID] = conv
	return conv, nil
}

func (d *Directory) Remove(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.convs[sessionID]
	delete(d.convs, sessionID)
	return ok
}

func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.convs)
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

const DefaultLLMTimeout = 60 * time.Second

type ChatRequest struct {
	Message   string
	SessionID string
	// UserID is the identity asserted by the upstream portal. Nil means the
	// caller is not authenticated.
	UserID *int64
}

type ChatReply struct {
	Response  string
	SessionID string
}

type ChatServiceOptions struct {
	Llm        domain.Llm
	Sessions   domain.SessionDirectory
	Prompts    PromptBuilder
	Tools      *ToolRegistry
	Dispatcher *Dispatcher
	Broker     domain.MessageBroker
	Hasher     domain.Hasher
	Metrics    domain.Metrics
	LLMTimeout time.Duration
}

type ChatService struct {
	llm        domain.Llm
	sessions   domain.SessionDirectory
	prompts    PromptBuilder
	tools      *ToolRegistry
	dispatcher *Dispatcher
	broker     domain.MessageBroker
	hasher     domain.Hasher
	metrics    domain.Metrics
	llmTimeout time.Duration
	now        func() time.Time
}

func NewChatService(opts ChatServiceOptions) *ChatService {
	if opts.Metrics == nil {
		opts.Metrics = domain.NopMetrics{}
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = DefaultLLMTimeout
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = NewDispatcher(opts.Tools, DefaultMaxToolIterations, opts.Metrics)
	}
	return &ChatService{
		llm:        opts.Llm,
		sessions:   opts.Sessions,
		prompts:    opts.Prompts,
		tools:      opts.Tools,
		dispatcher: opts.Dispatcher,
		broker:     opts.Broker,
		hasher:     opts.Hasher,
		metrics:    opts.Metrics,
		llmTimeout: opts.LLMTimeout,
		now:        time.Now,
	}
}

// Chat answers one user message on a session, creating the conversation on
// the first message of the session id.
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	if req.UserID == nil || *req.UserID <= 0 {
		return nil, ErrUnauthenticated
	}
	userID := *req.UserID
	sessionID := strings.TrimSpace(req.SessionID)
	message := strings.TrimSpace(req.Message)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}

	ctx = log.WithSessionID(log.WithUserID(ctx, userID), sessionID)
	ctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	conv, err := s.sessions.GetOrCreate(ctx, sessionID, s.conversationFactory(userID))
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		log.WithCtx(ctx).Warn("session id reused by another user", zap.Int64("owner", conv.UserID))
		return nil, ErrSessionOwnership
	}

	conv.Lock()
	defer conv.Unlock()

	result, err := s.dispatcher.Run(ctx, conv.Chat, userID, message)
	if err != nil {
		return nil, err
	}
	s.publishToolEvents(ctx, conv, result.Executed)

	return &ChatReply{Response: result.Reply, SessionID: sessionID}, nil
}

func (s *ChatService) conversationFactory(userID int64) domain.ConversationFactory {
	return func(ctx context.Context) (*domain.Conversation, error) {
		prompt, err := s.prompts.BuildSystemPrompt(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("build system prompt: %w", err)
		}

		chat, err := s.llm.StartChat(ctx, prompt, s.tools.Declarations())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}

		conv := &domain.Conversation{
			UserID:    userID,
			Chat:      chat,
			CreatedAt: s.now(),
		}
		if s.hasher != nil {
			conv.PromptHash = s.hasher.Hash([]byte(prompt))
		}
		s.metrics.SessionStarted()
		log.WithCtx(ctx).Info("conversation started",
			zap.String("prompt_hash", conv.PromptHash),
			zap.Int("prompt_length", len(prompt)))
		return conv, nil
	}
}

// Utterance is one inbound message on a streaming connection.
type Utterance struct {
	SessionID string
	Message   string
}

// Answer is the outcome of one Utterance.
type Answer struct {
	SessionID string
	Response  string
	Err       error
}

// Converse answers utterances in arrival order until input closes or ctx is
// done.
func (s *ChatService) Converse(ctx context.Context, userID int64, input <-chan Utterance, output chan<- Answer) error {
	for {
		select {
		case u, ok := <-input:
			if !ok {
				return nil
			}
			answer := Answer{SessionID: u.SessionID}
			reply, err := s.Chat(ctx, ChatRequest{Message: u.Message, SessionID: u.SessionID, UserID: &userID})
			if err != nil {
				answer.Err = err
			} else {
				answer.Response = reply.Response
			}
			select {
			case output <- answer:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *ChatService) publishToolEvents(ctx context.Context, conv *domain.Conversation, executed []ExecutedCall) {
	for _, call := range executed {
		if call.Outcome.Status != domain.OutcomeSuccess {
			continue
		}
		var event domain.Event
		switch call.Name {
		case SaveProfileToolName:
			event = domain.Event{Type: domain.EventProfileSaved}
		case CreateReservationToolName:
			event = domain.Event{
				Type: domain.EventReservationCreated,
				Data: map[string]any{"reservation_id": call.Outcome.ReservationID},
			}
		default:
			continue
		}
		event.SessionID = conv.ID
		event.UserID = conv.UserID
		event.Timestamp = s.now()
		publishEvent(ctx, s.broker, event)
	}
}

// NewSessionTeardown returns the hook run when a conversation leaves the
// session directory.
func NewSessionTeardown(broker domain.MessageBroker, metrics domain.Metrics) domain.TeardownFunc {
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return func(conv *domain.Conversation, reason domain.TeardownReason) {
		metrics.SessionEnded(reason)
		turns := conversationTurns(conv)
		log.With(
			zap.String("session_id", conv.ID),
			zap.Int64("user_id", conv.UserID),
			zap.Int("turns", turns),
		).Debug("conversation ended")
		if reason == domain.TeardownRemoved {
			return
		}
		publishEvent(context.Background(), broker, domain.Event{
			Type:      domain.EventSessionExpired,
			SessionID: conv.ID,
			UserID:    conv.UserID,
			Data:      map[string]any{"reason": string(reason), "turns": turns},
			Timestamp: time.Now(),
		})
	}
}

// conversationTurns counts the text messages exchanged on conv.
func conversationTurns(conv *domain.Conversation) int {
	if conv.Chat == nil {
		return 0
	}
	history, err := conv.Chat.History()
	if err != nil {
		log.With(zap.String("session_id", conv.ID), zap.Error(err)).Warn("failed to read conversation history")
		return 0
	}
	return len(history)
}

func publishEvent(ctx context.Context, broker domain.MessageBroker, event domain.Event) {
	if broker == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithCtx(ctx).Error("failed to marshal event", zap.Error(err))
		return
	}
	if err := broker.Publish(ctx, domain.EventsTopic, domain.EventsRoutingKey, payload); err != nil {
		log.WithCtx(ctx).Warn("failed to publish event",
			zap.String("event", string(event.Type)),
			zap.Error(err))
	}
}

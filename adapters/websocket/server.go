package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

type Server struct {
	upgrader      websocket.Upgrader
	chat          Conversational
	messageBroker domain.MessageBroker
	hub           *Hub
}

// NewServer builds the websocket edge. allowedOrigins mirrors the CORS
// allow-list; "*" accepts any origin.
func NewServer(chat Conversational, messageBroker domain.MessageBroker, allowedOrigins []string) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		chat:          chat,
		messageBroker: messageBroker,
		hub:           NewHub(),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// non-browser clients such as diner-replica
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenEvents forwards conversation events to the connections following the
// event's session until ctx is done or the broker closes.
func (s *Server) ListenEvents(ctx context.Context) error {
	messageChan, err := s.messageBroker.Subscribe(ctx, domain.EventsTopic, domain.EventsRoutingKey)
	if err != nil {
		return err
	}
	log.WithCtx(ctx).Info("WebSocket server listening to conversation events")

	for {
		select {
		case msg, ok := <-messageChan:
			if !ok {
				log.WithCtx(ctx).Info("event listener stopped, broker closed")
				return nil
			}
			s.forward(ctx, msg)

		case <-ctx.Done():
			log.WithCtx(ctx).Info("event listener stopped")
			return nil
		}
	}
}

func (s *Server) forward(ctx context.Context, msg domain.Message) {
	var event domain.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		log.WithCtx(ctx).Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	sent := s.hub.SendToSession(event.SessionID, event.UserID, Frame{
		Type:      FrameEvent,
		SessionID: event.SessionID,
		Event:     &event,
	})
	log.WithCtx(ctx).Debug("event forwarded",
		zap.String("type", string(event.Type)),
		zap.String("session_id", event.SessionID),
		zap.Int("clients", sent))
}

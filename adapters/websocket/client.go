package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	httpadapter "github.com/centralrestaurante/amigo-central/adapters/http"
	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/usecase"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
	inboxBuffer    = 16
)

const (
	FrameMessage = "message"
	FrameReply   = "reply"
	FrameError   = "error"
	FrameEvent   = "event"
)

// InboundFrame is what a client sends.
type InboundFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Frame is what the server pushes.
type Frame struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	Response  string        `json:"response,omitempty"`
	Code      int           `json:"code,omitempty"`
	Message   string        `json:"message,omitempty"`
	Event     *domain.Event `json:"event,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Conversational is the part of the chat service a connection needs.
type Conversational interface {
	Converse(ctx context.Context, userID int64, input <-chan usecase.Utterance, output chan<- usecase.Answer) error
}

type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID int64
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	closed   bool
	sessions map[string]struct{}
}

func NewClient(ctx context.Context, conn *websocket.Conn, userID int64) *Client {
	ctx = log.WithUserID(ctx, userID)
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		userID:   userID,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]struct{}),
	}
}

// Run starts the pumps. Messages are answered in arrival order by chat.
func (c *Client) Run(chat Conversational) {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})

	inbox := make(chan usecase.Utterance, inboxBuffer)
	answers := make(chan usecase.Answer)

	go func() {
		defer close(answers)
		if err := chat.Converse(c.ctx, c.userID, inbox, answers); err != nil && c.ctx.Err() == nil {
			log.WithCtx(c.ctx).Error("conversation loop stopped", zap.Error(err))
		}
	}()
	go c.replyPump(answers)
	go c.readPump(inbox)
	go c.writePump()
}

// Close gracefully closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	c.conn.Close()
}

func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) UserID() int64 {
	return c.userID
}

// Follows reports whether this connection has sent a message on sessionID.
func (c *Client) Follows(sessionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sessions[sessionID]
	return ok
}

func (c *Client) follow(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = struct{}{}
}

func (c *Client) readPump(inbox chan<- usecase.Utterance) {
	defer func() {
		close(inbox)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}

		var in InboundFrame
		if err := json.Unmarshal(message, &in); err != nil {
			c.SendFrame(Frame{Type: FrameError, Code: http.StatusBadRequest, Message: "malformed frame"})
			continue
		}
		if in.Type != FrameMessage {
			c.SendFrame(Frame{Type: FrameError, SessionID: in.SessionID, Code: http.StatusBadRequest, Message: "unsupported frame type"})
			continue
		}

		sessionID := strings.TrimSpace(in.SessionID)
		if sessionID != "" {
			c.follow(sessionID)
		}
		select {
		case inbox <- usecase.Utterance{SessionID: sessionID, Message: in.Message}:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) replyPump(answers <-chan usecase.Answer) {
	for answer := range answers {
		if answer.Err != nil {
			code, message := httpadapter.StatusFor(answer.Err)
			log.WithCtx(c.ctx).Debug("chat turn failed", zap.String("session_id", answer.SessionID), zap.Error(answer.Err))
			c.SendFrame(Frame{Type: FrameError, SessionID: answer.SessionID, Code: code, Message: message})
			continue
		}
		c.SendFrame(Frame{Type: FrameReply, SessionID: answer.SessionID, Response: answer.Response})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Debug("Failed to send ping", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// SendFrame queues a frame. A client that cannot keep up is disconnected.
func (c *Client) SendFrame(frame Frame) error {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.SendMessage(payload)
}

func (c *Client) SendMessage(message []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return websocket.ErrCloseSent
	}
	select {
	case c.send <- message:
		c.mu.RUnlock()
		return nil
	default:
		c.mu.RUnlock()
		log.WithCtx(c.ctx).Warn("send buffer full, closing connection")
		c.Close()
		return websocket.ErrCloseSent
	}
}

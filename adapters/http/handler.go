package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/usecase"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

const (
	// MaxAudioBytes caps a voice upload; synchronous recognition accepts
	// about one minute of audio.
	MaxAudioBytes = 10 * 1024 * 1024

	// UserIDHeader carries the portal-asserted user on voice uploads.
	UserIDHeader = "X-User-ID"

	RootStatus = "Amigo Central backend - OK"
)

type ChatHandler struct {
	chatService  *usecase.ChatService
	voiceService *usecase.VoiceService
	sessions     domain.SessionDirectory
	now          func() time.Time
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    *int64 `json:"user_id"`
}

type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type VoiceResponse struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
	Response   string `json:"response"`
	// Audio is base64 MP3 once encoded; omitted when synthesis failed.
	Audio []byte `json:"audio,omitempty"`
}

// NewChatHandler wires the HTTP edge. voiceService may be nil, in which case
// the voice route is not registered.
func NewChatHandler(chatService *usecase.ChatService, voiceService *usecase.VoiceService, sessions domain.SessionDirectory) *ChatHandler {
	return &ChatHandler{
		chatService:  chatService,
		voiceService: voiceService,
		sessions:     sessions,
		now:          time.Now,
	}
}

// Routes registers the public endpoints. limit wraps the endpoints that run
// a model turn.
func (h *ChatHandler) Routes(e *echo.Echo, limit echo.MiddlewareFunc) {
	e.GET("/", h.Root)
	e.POST("/chat", h.Chat, limit)

	api := e.Group("/api/v1")
	api.GET("/health", h.HealthCheck)
	api.POST("/chat", h.Chat, limit)
	if h.voiceService != nil {
		api.POST("/chat/voice", h.Voice, limit)
	}
}

func (h *ChatHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": RootStatus})
}

func (h *ChatHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": h.now().UTC(),
		"service":   "amigo-central",
		"sessions":  h.sessions.Len(),
		"voice":     h.voiceService != nil,
	})
}

// Chat answers one message. The user id is taken from the body as asserted
// by the portal; a missing one is rejected before any session work.
func (h *ChatHandler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	reply, err := h.chatService.Chat(c.Request().Context(), usecase.ChatRequest{
		Message:   req.Message,
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Response:  reply.Response,
		SessionID: reply.SessionID,
	})
}

// Voice transcribes the uploaded clip, answers it like a text message and
// returns the spoken reply.
func (h *ChatHandler) Voice(c echo.Context) error {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, "audio/") && !strings.HasPrefix(contentType, echo.MIMEOctetStream) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid content type. Expected audio/* or application/octet-stream")
	}

	audio, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxAudioBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read audio body")
	}
	if len(audio) > MaxAudioBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "audio body too large")
	}

	ctx := c.Request().Context()
	log.WithCtx(ctx).Debug("voice message received",
		zap.Int("audio_bytes", len(audio)),
		zap.String("content_type", contentType))

	reply, err := h.voiceService.Talk(ctx, usecase.VoiceRequest{
		Audio:       audio,
		ContentType: contentType,
		SessionID:   c.QueryParam("session_id"),
		UserID:      headerUserID(c),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, VoiceResponse{
		SessionID:  reply.SessionID,
		Transcript: reply.Transcript,
		Response:   reply.Response,
		Audio:      reply.Audio,
	})
}

func headerUserID(c echo.Context) *int64 {
	raw := strings.TrimSpace(c.Request().Header.Get(UserIDHeader))
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// ConcurrencyLimit rejects requests once limit model turns are in flight.
func ConcurrencyLimit(limit int) echo.MiddlewareFunc {
	semaphore := make(chan struct{}, limit)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
				return next(c)
			default:
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many concurrent requests")
			}
		}
	}
}

// RequestContext copies the request id set by echo's RequestID middleware
// into the request context so log.WithCtx picks it up.
func RequestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id == "" {
			id = c.Request().Header.Get(echo.HeaderXRequestID)
		}
		if id != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(log.WithRequestID(req.Context(), id)))
		}
		return next(c)
	}
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/domain/domaintest"
	"github.com/centralrestaurante/amigo-central/usecase"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

func init() {
	log.SetLogger(zap.NewNop())
}

type staticPrompts struct{ calls int }

func (p *staticPrompts) BuildSystemPrompt(context.Context, int64) (string, error) {
	p.calls++
	return "You are the concierge of Central.", nil
}

type fixture struct {
	e        *echo.Echo
	llm      *domaintest.Llm
	prompts  *staticPrompts
	sessions *domaintest.Directory
}

func newFixture(t *testing.T, newChat func() domain.ChatSession, withVoice bool) *fixture {
	t.Helper()
	f := &fixture{
		llm:      &domaintest.Llm{NewChat: newChat},
		prompts:  &staticPrompts{},
		sessions: domaintest.NewDirectory(),
	}
	chat := usecase.NewChatService(usecase.ChatServiceOptions{
		Llm:      f.llm,
		Sessions: f.sessions,
		Prompts:  f.prompts,
		Tools:    usecase.NewToolRegistry(),
	})
	var voice *usecase.VoiceService
	if withVoice {
		voice = usecase.NewVoiceService(chat, &domaintest.Transcriber{Transcript: "hola"}, &domaintest.Synthesizer{Audio: []byte("mp3")})
	}

	f.e = echo.New()
	f.e.HTTPErrorHandler = NewHTTPErrorHandler(false)
	NewChatHandler(chat, voice, f.sessions).Routes(f.e, ConcurrencyLimit(4))
	return f
}

func replying(text string) func() domain.ChatSession {
	return func() domain.ChatSession {
		c := domaintest.NewScriptedChat()
		c.Loop = &domain.ModelTurn{Text: text}
		return c
	}
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestRoot(t *testing.T) {
	f := newFixture(t, replying("hola"), false)

	rec := f.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RootStatus, decode(t, rec)["status"])
}

func TestHealthCheckReportsSessions(t *testing.T) {
	f := newFixture(t, replying("hola"), false)
	f.do(http.MethodPost, "/chat", `{"message":"hola","session_id":"s1","user_id":7}`, nil)

	rec := f.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["sessions"])
}

func TestChat(t *testing.T) {
	f := newFixture(t, replying("¡Bienvenido a Central!"), false)

	for _, path := range []string{"/chat", "/api/v1/chat"} {
		rec := f.do(http.MethodPost, path, `{"message":"hola","session_id":"s1","user_id":7}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ChatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "¡Bienvenido a Central!", resp.Response)
		assert.Equal(t, "s1", resp.SessionID)
	}
	assert.Equal(t, 1, f.prompts.calls)
}

func TestChatMissingUserIsUnauthorized(t *testing.T) {
	f := newFixture(t, replying("hola"), false)

	for _, body := range []string{
		`{"message":"hola","session_id":"s1"}`,
		`{"message":"hola","session_id":"s1","user_id":null}`,
	} {
		rec := f.do(http.MethodPost, "/chat", body, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "error", decode(t, rec)["status"])
	}
	assert.Zero(t, f.prompts.calls)
	assert.Zero(t, f.sessions.Len())
}

func TestChatBadRequests(t *testing.T) {
	f := newFixture(t, replying("hola"), false)

	cases := map[string]string{
		"empty message":    `{"message":"  ","session_id":"s1","user_id":7}`,
		"empty session":    `{"message":"hola","session_id":"","user_id":7}`,
		"malformed":        `{"message":`,
		"wrong field type": `{"message":"hola","session_id":"s1","user_id":"seven"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/chat", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestChatSessionOwnedByAnotherUser(t *testing.T) {
	f := newFixture(t, replying("hola"), false)

	rec := f.do(http.MethodPost, "/chat", `{"message":"hola","session_id":"s1","user_id":7}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/chat", `{"message":"hola","session_id":"s1","user_id":8}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChatUnknownToolIsBadRequest(t *testing.T) {
	f := newFixture(t, func() domain.ChatSession {
		return domaintest.NewScriptedChat(domaintest.Call("drop_tables", nil))
	}, false)

	rec := f.do(http.MethodPost, "/chat", `{"message":"hola","session_id":"s1","user_id":7}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, decode(t, rec), "response")
}

func TestChatModelFailure(t *testing.T) {
	f := newFixture(t, func() domain.ChatSession {
		c := domaintest.NewScriptedChat()
		c.Err = errors.New("quota exceeded")
		return c
	}, false)

	rec := f.do(http.MethodPost, "/chat", `{"message":"hola","session_id":"s1","user_id":7}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "quota")
}

func TestErrorHandlerDetail(t *testing.T) {
	for _, expose := range []bool{false, true} {
		e := echo.New()
		e.HTTPErrorHandler = NewHTTPErrorHandler(expose)
		e.GET("/boom", func(echo.Context) error { return errors.New("pq: relation does not exist") })

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "error", body.Status)
		assert.Equal(t, "Internal server error", body.Message)
		if expose {
			assert.Equal(t, "pq: relation does not exist", body.Detail)
		} else {
			assert.Empty(t, body.Detail)
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{usecase.ErrUnauthenticated, http.StatusUnauthorized},
		{usecase.ErrInvalidRequest, http.StatusBadRequest},
		{usecase.ErrUnknownTool, http.StatusBadRequest},
		{usecase.ErrSessionOwnership, http.StatusForbidden},
		{usecase.ErrToolLoopExhausted, http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{usecase.ErrModelUnavailable, http.StatusBadGateway},
		{usecase.ErrSpeechUnavailable, http.StatusBadGateway},
		{echo.NewHTTPError(http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		code, _ := StatusFor(tc.err)
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestConcurrencyLimit(t *testing.T) {
	e := echo.New()
	release := make(chan struct{})
	entered := make(chan struct{})
	e.GET("/slow", func(c echo.Context) error {
		entered <- struct{}{}
		<-release
		return c.NoContent(http.StatusOK)
	}, ConcurrencyLimit(1))

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
		done <- rec.Code
	}()
	<-entered

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestVoice(t *testing.T) {
	f := newFixture(t, replying("Claro, ¿para cuántas personas?"), true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/voice?session_id=s1", strings.NewReader("RIFF...."))
	req.Header.Set(echo.HeaderContentType, "audio/wav")
	req.Header.Set(UserIDHeader, "7")
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp VoiceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "hola", resp.Transcript)
	assert.Equal(t, "Claro, ¿para cuántas personas?", resp.Response)
	assert.Equal(t, []byte("mp3"), resp.Audio)
	assert.Contains(t, rec.Body.String(), `"audio":"bXAz"`)
}

func TestVoiceRejections(t *testing.T) {
	f := newFixture(t, replying("hola"), true)

	send := func(contentType, userID string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/voice?session_id=s1", strings.NewReader("RIFF"))
		req.Header.Set(echo.HeaderContentType, contentType)
		if userID != "" {
			req.Header.Set(UserIDHeader, userID)
		}
		rec := httptest.NewRecorder()
		f.e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, send("text/plain", "7"))
	assert.Equal(t, http.StatusUnauthorized, send("audio/wav", ""))
	assert.Equal(t, http.StatusUnauthorized, send("audio/wav", "abc"))
}

func TestVoiceRouteDisabled(t *testing.T) {
	f := newFixture(t, replying("hola"), false)

	rec := f.do(http.MethodPost, "/api/v1/chat/voice?session_id=s1", "", nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

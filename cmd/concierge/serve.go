package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/centralrestaurante/amigo-central/adapters/hasher"
	httpadapter "github.com/centralrestaurante/amigo-central/adapters/http"
	"github.com/centralrestaurante/amigo-central/adapters/llm"
	"github.com/centralrestaurante/amigo-central/adapters/message_broker"
	"github.com/centralrestaurante/amigo-central/adapters/metrics"
	"github.com/centralrestaurante/amigo-central/adapters/session"
	"github.com/centralrestaurante/amigo-central/adapters/speech"
	"github.com/centralrestaurante/amigo-central/adapters/store"
	"github.com/centralrestaurante/amigo-central/adapters/tts"
	"github.com/centralrestaurante/amigo-central/adapters/websocket"
	"github.com/centralrestaurante/amigo-central/config"
	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/usecase"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Debug {
				if logger, err := zap.NewDevelopment(); err == nil {
					log.SetLogger(logger)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	db, err := store.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	gemini, err := llm.NewGeminiClient(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
	if err != nil {
		return err
	}

	prom := metrics.NewPrometheus()
	broker, closeBroker := newEventBroker(cfg)
	defer closeBroker()

	sessions := session.NewDirectory(cfg.SessionCapacity, cfg.SessionTTL, usecase.NewSessionTeardown(broker, prom))
	defer sessions.Close()

	tools := usecase.NewConciergeTools(db, cfg.Location())
	chat := usecase.NewChatService(usecase.ChatServiceOptions{
		Llm:        gemini,
		Sessions:   sessions,
		Prompts:    usecase.NewContextBuilder(db),
		Tools:      tools,
		Dispatcher: usecase.NewDispatcher(tools, cfg.MaxToolIterations, prom),
		Broker:     broker,
		Hasher:     hasher.New(),
		Metrics:    prom,
		LLMTimeout: cfg.LLMTimeout,
	})

	var voice *usecase.VoiceService
	if cfg.VoiceEnabled {
		googleSpeech, err := speech.NewGoogleSpeech(ctx, cfg.VoiceLanguage)
		if err != nil {
			return err
		}
		defer googleSpeech.Close()
		googleTTS, err := tts.NewGoogleTTS(ctx, cfg.TTSLanguage)
		if err != nil {
			return err
		}
		defer googleTTS.Close()
		voice = usecase.NewVoiceService(chat, googleSpeech, googleTTS)
	}

	e := newEcho(cfg)
	httpadapter.NewChatHandler(chat, voice, sessions).
		Routes(e, httpadapter.ConcurrencyLimit(cfg.MaxConcurrentChats))
	e.GET("/metrics", echo.WrapHandler(prom.Handler()))

	var wsServer *websocket.Server
	if cfg.JWTSecret != "" {
		wsServer = websocket.NewServer(chat, broker, cfg.CORSOrigins)
		go func() {
			if err := wsServer.ListenEvents(ctx); err != nil {
				log.With(zap.Error(err)).Error("event listener failed")
			}
		}()
		e.GET("/ws", wsServer.Handler, websocket.NewAuthenticator(cfg.JWTSecret).Middleware)
	} else {
		log.With().Warn("JWT_SECRET is not set, WebSocket chat is disabled")
	}

	log.With(
		zap.String("address", cfg.Address()),
		zap.Bool("voice", voice != nil),
		zap.Bool("websocket", wsServer != nil),
	).Info("Starting server")

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.With().Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if wsServer != nil {
		wsServer.Hub().CloseAll()
	}
	return e.Shutdown(shutdownCtx)
}

// newEventBroker returns the in-process event bus, or nil when the WebSocket
// server that drains it is disabled.
func newEventBroker(cfg *config.Config) (domain.MessageBroker, func() error) {
	if cfg.JWTSecret == "" {
		return nil, func() error { return nil }
	}
	broker := message_broker.NewChannelMessageBroker()
	return broker, broker.Close
}

func newEcho(cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpadapter.NewHTTPErrorHandler(cfg.ExposeErrors)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(httpadapter.RequestContext)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			httpadapter.UserIDHeader,
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	e.Use(middleware.BodyLimit("11M"))
	return e
}

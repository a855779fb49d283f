package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/utils/log"
)

const Prefix = "CONCIERGE"

// Config holds every runtime knob of the concierge backend. Values come from
// CONCIERGE_* environment variables, optionally seeded from a .env file.
type Config struct {
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// DBDriver is either "postgres" or "sqlite".
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"file:concierge.db"`

	GoogleAPIKey      string        `envconfig:"GOOGLE_API_KEY"`
	GeminiModel       string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	LLMTimeout        time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
	MaxToolIterations int           `envconfig:"MAX_TOOL_ITERATIONS" default:"8"`

	SessionCapacity int           `envconfig:"SESSION_CAPACITY" default:"1000"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"30m"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"https://localhost:7121,http://localhost:5123,https://localhost:44327"`
	JWTSecret   string   `envconfig:"JWT_SECRET"`

	VoiceEnabled  bool   `envconfig:"VOICE_ENABLED" default:"false"`
	VoiceLanguage string `envconfig:"VOICE_LANGUAGE" default:"es-US"`
	TTSLanguage   string `envconfig:"TTS_LANGUAGE" default:"es-US"`

	// ExposeErrors attaches diagnostic detail to 500 responses. Only for
	// deployments reachable from trusted networks.
	ExposeErrors bool `envconfig:"EXPOSE_ERRORS" default:"false"`
	// RateLimit is requests per second per client IP.
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"20"`
	// MaxConcurrentChats bounds in-flight chat turns across all clients.
	MaxConcurrentChats int `envconfig:"MAX_CONCURRENT_CHATS" default:"32"`

	RestaurantTimezone string `envconfig:"RESTAURANT_TIMEZONE" default:"America/Lima"`

	Debug bool `envconfig:"DEBUG" default:"false"`
}

// Load reads .env (if present) then the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = gotenv.Load()
	return New()
}

// New builds a Config from the environment only.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log.With(
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("gemini_model", cfg.GeminiModel),
		zap.Duration("llm_timeout", cfg.LLMTimeout),
		zap.Int("max_tool_iterations", cfg.MaxToolIterations),
		zap.Int("session_capacity", cfg.SessionCapacity),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Strings("cors_origins", cfg.CORSOrigins),
		zap.Bool("voice_enabled", cfg.VoiceEnabled),
		zap.Bool("expose_errors", cfg.ExposeErrors),
		zap.String("restaurant_timezone", cfg.RestaurantTimezone),
	).Info("config loaded")

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	if c.MaxToolIterations <= 0 {
		return fmt.Errorf("MAX_TOOL_ITERATIONS must be positive")
	}
	if c.SessionCapacity <= 0 {
		return fmt.Errorf("SESSION_CAPACITY must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive")
	}
	if c.MaxConcurrentChats <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_CHATS must be positive")
	}
	return nil
}

// Address is the listen address for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Location resolves RestaurantTimezone. Hosts without tzdata fall back to
// Lima's fixed offset, which has no DST.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.RestaurantTimezone)
	if err != nil {
		log.With(zap.String("timezone", c.RestaurantTimezone), zap.Error(err)).
			Warn("unknown timezone, falling back to UTC-5")
		return time.FixedZone("PET", -5*60*60)
	}
	return loc
}

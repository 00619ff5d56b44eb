package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"

	"github.com/Tyrowin/gochat-live/internal/delivery"
	"github.com/Tyrowin/gochat-live/internal/relay"
	"github.com/Tyrowin/gochat-live/internal/signaling"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls
// and the relay policies.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	SendBuffer      int
	Relay           relay.Options
	StaticDir       string
	ShutdownTimeout time.Duration
	LogLevel        string
}

// envConfig is the environment view of Config.
type envConfig struct {
	Port                     string        `env:"SERVER_PORT,default=:8080" validate:"required"`
	AllowedOrigins           string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize           int64         `env:"MAX_MESSAGE_SIZE,default=65536" validate:"gt=0"`
	RateLimitBurst           int           `env:"RATE_LIMIT_BURST,default=20" validate:"gt=0"`
	RateLimitRefillInterval  time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s" validate:"gt=0"`
	SendBuffer               int           `env:"SEND_BUFFER,default=256" validate:"gt=0"`
	DeliveryMode             string        `env:"DELIVERY_MODE,default=broadcast" validate:"oneof=broadcast ack"`
	SignalingMode            string        `env:"SIGNALING_MODE,default=targeted" validate:"oneof=broadcast targeted"`
	SuppressDuplicateAnswers bool          `env:"SUPPRESS_DUPLICATE_ANSWERS,default=true"`
	TypingEcho               bool          `env:"TYPING_ECHO,default=false"`
	MaxTrackedPerSender      int           `env:"MAX_TRACKED_PER_SENDER,default=256" validate:"gt=0"`
	StaticDir                string        `env:"STATIC_DIR"`
	ShutdownTimeout          time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	LogLevel                 string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
}

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 64 * 1024
	defaultBurst           = 20
	defaultSendBuffer      = 256
	defaultShutdownTimeout = 10 * time.Second
)

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool

	configValidator = validator.New()
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: time.Second,
		},
		SendBuffer:      defaultSendBuffer,
		Relay:           relay.DefaultOptions(),
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        "info",
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Relay.DeliveryMode == "" {
		cfg.Relay.DeliveryMode = delivery.ModeBroadcast
	}
	if cfg.Relay.SignalingMode == "" {
		cfg.Relay.SignalingMode = signaling.ModeTargeted
	}
	if cfg.Relay.TrackedPerSender <= 0 {
		cfg.Relay.TrackedPerSender = delivery.DefaultWindow
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		sanitizeConfig(defaultConfig())
		return
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv reads the configuration from environment variables,
// applying the documented default for each one that is unset. Values that
// are set but invalid are reported rather than silently replaced.
func NewConfigFromEnv() (*Config, error) {
	var ec envConfig
	if _, err := env.UnmarshalFromEnviron(&ec); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := configValidator.Struct(ec); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	deliveryMode, err := delivery.ParseMode(ec.DeliveryMode)
	if err != nil {
		return nil, err
	}
	signalingMode, err := signaling.ParseMode(ec.SignalingMode)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:           ec.Port,
		AllowedOrigins: parseOrigins(ec.AllowedOrigins),
		MaxMessageSize: ec.MaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          ec.RateLimitBurst,
			RefillInterval: ec.RateLimitRefillInterval,
		},
		SendBuffer: ec.SendBuffer,
		Relay: relay.Options{
			DeliveryMode:             deliveryMode,
			SignalingMode:            signalingMode,
			SuppressDuplicateAnswers: ec.SuppressDuplicateAnswers,
			TypingEcho:               ec.TypingEcho,
			TrackedPerSender:         ec.MaxTrackedPerSender,
		},
		StaticDir:       ec.StaticDir,
		ShutdownTimeout: ec.ShutdownTimeout,
		LogLevel:        ec.LogLevel,
	}, nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := parts[:0]
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

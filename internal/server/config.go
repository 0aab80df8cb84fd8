// Package server provides configuration helpers that define runtime defaults,
// validation, seed data and rate-limiting parameters for the relay server.
package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/relaychat/internal/chat"
)

const (
	defaultPort           = ":6543"
	defaultOrigin         = "http://localhost:6543"
	defaultMaxMessageSize = 4096
	defaultSendBufferSize = 256
	defaultBurst          = 5
	defaultRefillInterval = time.Second
	defaultSeedUsers      = "Mock 1:1234,Mock 2:1234,Mock 3:1234,Mock 4:1234"
	defaultSeedRooms      = "General,Random"
)

// ErrInvalidSeedUser is returned for a SEED_USERS entry that is not
// "nickname:credential".
var ErrInvalidSeedUser = errors.New("server: seed user must be nickname:credential")

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls
// and the identities and rooms present at startup.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	SendBufferSize int
	RateLimit      RateLimitConfig
	SeedUsers      []chat.Identity
	SeedRooms      []string
	LogLevel       string
	LogFormat      string
}

func defaultConfig() Config {
	users, _ := parseSeedUsers(defaultSeedUsers)
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			defaultOrigin,
		},
		MaxMessageSize: defaultMaxMessageSize,
		SendBufferSize: defaultSendBufferSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		SeedUsers: users,
		SeedRooms: parseList(defaultSeedRooms),
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// sanitize fills zero values with defaults and returns a copy that shares no
// slices with cfg.
func (cfg Config) sanitize() Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	cfg.SeedUsers = append([]chat.Identity(nil), cfg.SeedUsers...)
	cfg.SeedRooms = append([]string(nil), cfg.SeedRooms...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set or hold
// invalid numbers. Malformed seed users are an error.
func NewConfigFromEnv() (*Config, error) {
	cfg := defaultConfig()

	// Load SERVER_PORT
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	// Load ALLOWED_ORIGINS
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseList(origins)
	}

	// Load MAX_MESSAGE_SIZE
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	// Load SEND_BUFFER_SIZE
	if size := os.Getenv("SEND_BUFFER_SIZE"); size != "" {
		cfg.SendBufferSize = parseIntValue(size, cfg.SendBufferSize)
	}

	// Load RATE_LIMIT_BURST
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	// Load RATE_LIMIT_REFILL_INTERVAL
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.RateLimit.RefillInterval)
	}

	// Load SEED_USERS
	if users := os.Getenv("SEED_USERS"); users != "" {
		parsed, err := parseSeedUsers(users)
		if err != nil {
			return nil, err
		}
		cfg.SeedUsers = parsed
	}

	// Load SEED_ROOMS
	if rooms := os.Getenv("SEED_ROOMS"); rooms != "" {
		cfg.SeedRooms = parseList(rooms)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}

	return &cfg, nil
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseSeedUsers reads "nick:credential,nick:credential". Nicknames may
// contain spaces; the credential is everything after the first colon.
func parseSeedUsers(value string) ([]chat.Identity, error) {
	var users []chat.Identity
	for _, entry := range parseList(value) {
		nick, credential, ok := strings.Cut(entry, ":")
		nick = strings.TrimSpace(nick)
		if !ok || nick == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSeedUser, entry)
		}
		users = append(users, chat.Identity{Nickname: nick, Credential: credential})
	}
	return users, nil
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

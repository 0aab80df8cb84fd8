package server

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Tyrowin/relaychat/internal/chat"
)

// TestNewConfig verifies that NewConfig returns the documented defaults.
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":6543" {
		t.Errorf("Expected default port :6543, got %s", cfg.Port)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"http://localhost:6543"}) {
		t.Errorf("Unexpected default origins: %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("Expected MaxMessageSize 4096, got %d", cfg.MaxMessageSize)
	}
	if cfg.SendBufferSize != 256 {
		t.Errorf("Expected SendBufferSize 256, got %d", cfg.SendBufferSize)
	}
	if cfg.RateLimit.Burst != 5 || cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("Unexpected default rate limit: %+v", cfg.RateLimit)
	}

	wantUsers := []chat.Identity{
		{Nickname: "Mock 1", Credential: "1234"},
		{Nickname: "Mock 2", Credential: "1234"},
		{Nickname: "Mock 3", Credential: "1234"},
		{Nickname: "Mock 4", Credential: "1234"},
	}
	if !reflect.DeepEqual(cfg.SeedUsers, wantUsers) {
		t.Errorf("Unexpected seed users: %+v", cfg.SeedUsers)
	}
	if !reflect.DeepEqual(cfg.SeedRooms, []string{"General", "Random"}) {
		t.Errorf("Unexpected seed rooms: %v", cfg.SeedRooms)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("Unexpected logging defaults: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example ,")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("SEND_BUFFER_SIZE", "32")
	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "3")
	t.Setenv("SEED_USERS", "alice:pw1, bob:pw:2")
	t.Setenv("SEED_ROOMS", "lobby")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := NewConfigFromEnv()
	if err != nil {
		t.Fatalf("NewConfigFromEnv failed: %v", err)
	}

	if cfg.Port != ":9000" {
		t.Errorf("Expected port :9000, got %s", cfg.Port)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"http://a.example", "http://b.example"}) {
		t.Errorf("Unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 1024 || cfg.SendBufferSize != 32 {
		t.Errorf("Unexpected sizes: %d %d", cfg.MaxMessageSize, cfg.SendBufferSize)
	}
	if cfg.RateLimit.Burst != 20 || cfg.RateLimit.RefillInterval != 3*time.Second {
		t.Errorf("Unexpected rate limit: %+v", cfg.RateLimit)
	}

	wantUsers := []chat.Identity{
		{Nickname: "alice", Credential: "pw1"},
		{Nickname: "bob", Credential: "pw:2"},
	}
	if !reflect.DeepEqual(cfg.SeedUsers, wantUsers) {
		t.Errorf("Unexpected seed users: %+v", cfg.SeedUsers)
	}
	if !reflect.DeepEqual(cfg.SeedRooms, []string{"lobby"}) {
		t.Errorf("Unexpected seed rooms: %v", cfg.SeedRooms)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "console" {
		t.Errorf("Unexpected logging config: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestNewConfigFromEnvInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "huge")
	t.Setenv("SEND_BUFFER_SIZE", "-1")
	t.Setenv("RATE_LIMIT_BURST", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "soon")

	cfg, err := NewConfigFromEnv()
	if err != nil {
		t.Fatalf("NewConfigFromEnv failed: %v", err)
	}

	defaults := NewConfig()
	if cfg.MaxMessageSize != defaults.MaxMessageSize {
		t.Errorf("Expected MaxMessageSize fallback %d, got %d", defaults.MaxMessageSize, cfg.MaxMessageSize)
	}
	if cfg.SendBufferSize != defaults.SendBufferSize {
		t.Errorf("Expected SendBufferSize fallback %d, got %d", defaults.SendBufferSize, cfg.SendBufferSize)
	}
	if cfg.RateLimit != defaults.RateLimit {
		t.Errorf("Expected rate limit fallback %+v, got %+v", defaults.RateLimit, cfg.RateLimit)
	}
}

func TestNewConfigFromEnvInvalidSeedUser(t *testing.T) {
	tests := []string{
		"alice",
		"alice:pw1,bob",
		":pw",
	}

	for _, value := range tests {
		t.Run(value, func(t *testing.T) {
			t.Setenv("SEED_USERS", value)

			_, err := NewConfigFromEnv()
			if !errors.Is(err, ErrInvalidSeedUser) {
				t.Errorf("Expected ErrInvalidSeedUser for %q, got %v", value, err)
			}
		})
	}
}

func TestSanitizeFillsDefaultsAndCopies(t *testing.T) {
	cfg := Config{
		SeedRooms: []string{"General"},
	}

	sanitized := cfg.sanitize()
	if sanitized.Port != defaultPort {
		t.Errorf("Expected port %s, got %s", defaultPort, sanitized.Port)
	}
	if sanitized.MaxMessageSize != defaultMaxMessageSize {
		t.Errorf("Expected MaxMessageSize %d, got %d", defaultMaxMessageSize, sanitized.MaxMessageSize)
	}
	if sanitized.RateLimit.Burst != defaultBurst {
		t.Errorf("Expected burst %d, got %d", defaultBurst, sanitized.RateLimit.Burst)
	}

	sanitized.SeedRooms[0] = "changed"
	if cfg.SeedRooms[0] != "General" {
		t.Error("sanitize must not share slices with the original config")
	}
}

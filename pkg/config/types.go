package config

import (
	"fmt"
	"time"

	"tutorchat/pkg/models"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Auth      AuthConfig      `yaml:"auth"`
	Security  SecurityConfig  `yaml:"security"`
	Chat      ChatConfig      `yaml:"chat"`
	Models    models.Catalog  `yaml:"models"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StorageConfig selects and configures the conversation store backend.
type StorageConfig struct {
	// Driver is "pebble" (embedded) or "supabase" (hosted Postgres).
	Driver   string         `yaml:"driver"`
	DBPath   string         `yaml:"db_path"`
	Supabase SupabaseConfig `yaml:"supabase"`
}

// SupabaseConfig holds the hosted Postgres/auth service connection.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
}

// GatewayConfig holds the model-inference gateway connection.
type GatewayConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// RequestTimeout bounds non-streaming calls; streaming requests are
	// controlled by the caller's context. Seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

// AuthConfig configures identity verification and caching.
type AuthConfig struct {
	// Mode is "supabase" (verify bearer tokens against GoTrue) or
	// "insecure" (trust the bearer token as the user id; local dev only).
	Mode  string          `yaml:"mode"`
	Cache AuthCacheConfig `yaml:"cache"`
}

// AuthCacheConfig configures the verified-identity cache.
type AuthCacheConfig struct {
	// Driver is "memory" or "redis".
	Driver string `yaml:"driver"`
	// TTL for cached identities, e.g. "5m".
	TTL           string `yaml:"ttl"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// TTLDuration parses the cache TTL, defaulting to 5 minutes.
func (c AuthCacheConfig) TTLDuration() time.Duration {
	if c.TTL == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
}

// ChatConfig holds prompt assembly settings.
type ChatConfig struct {
	// SystemPrompt overrides the built-in tutor prompt when set.
	SystemPrompt string `yaml:"system_prompt"`
	// MaxUtteranceLen caps submitted utterances (bytes). 0 uses the default.
	MaxUtteranceLen int `yaml:"max_utterance_len"`
}

// RetentionConfig drives the idle-conversation purge scheduler.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// Period is how long a conversation may stay idle before its turns are
	// purged, e.g. "720h".
	Period string `yaml:"period"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// Catalog returns the configured model set, falling back to the default
// catalogue when none is configured.
func (c *Config) Catalog() models.Catalog {
	if len(c.Models) > 0 {
		return c.Models
	}
	return DefaultCatalog()
}

// SystemPrompt returns the effective system prompt.
func (c *Config) SystemPrompt() string {
	if c.Chat.SystemPrompt != "" {
		return c.Chat.SystemPrompt
	}
	return DefaultSystemPrompt
}

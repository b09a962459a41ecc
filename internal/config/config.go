// Package config loads and validates application configuration.
package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Review     ReviewConfig     `mapstructure:"review"     validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// GenerationConfig contains settings for the content generator collaborator.
type GenerationConfig struct {
	// GeminiAPIKey may be empty: the review store then serves fallback decks
	// only, which is a supported degraded mode rather than a startup failure.
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
}

// ReviewConfig contains settings for the review store and session surface.
type ReviewConfig struct {
	// DeckCacheTTLMinutes bounds how long a generated deck is served from
	// cache before the generator is consulted again.
	DeckCacheTTLMinutes int `mapstructure:"deck_cache_ttl_minutes" validate:"required,gte=1,lte=1440"`

	// DefaultDeckSize is used when a session start request does not name a
	// count; MaxDeckSize caps what it may name.
	DefaultDeckSize int `mapstructure:"default_deck_size" validate:"required,gte=1"`
	MaxDeckSize     int `mapstructure:"max_deck_size"     validate:"required,gtefield=DefaultDeckSize"`

	// PersistQueueSize and PersistWorkerCount shape the best-effort outcome
	// write queue.
	PersistQueueSize   int `mapstructure:"persist_queue_size"   validate:"required,gte=1"`
	PersistWorkerCount int `mapstructure:"persist_worker_count" validate:"required,gte=1,lte=32"`
}

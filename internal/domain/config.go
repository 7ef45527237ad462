package domain

import "time"

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig represents consultation store configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig represents recommendation cache configuration
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	RedisURL      string        `mapstructure:"redis_url"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	MaxMemorySize int           `mapstructure:"max_memory_size"`
}

// CatalogConfig represents schedule catalog configuration
type CatalogConfig struct {
	// DataPath points at a JSON schedule file; empty means the built-in
	// baseline schedule is used.
	DataPath string `mapstructure:"data_path"`
}

// DocumentsConfig represents document generation configuration
type DocumentsConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// EngineConfig carries the scoring constants of the recommendation engine.
// Schedule revisions adjust these weights without a rebuild.
type EngineConfig struct {
	DurationBaseConfidence  float64 `mapstructure:"duration_base_confidence"`
	AgeAssessmentConfidence float64 `mapstructure:"age_assessment_confidence"`
	SignalBaseConfidence    float64 `mapstructure:"signal_base_confidence"`
	SignalIncrement         float64 `mapstructure:"signal_increment"`
	SignalConfidenceCap     float64 `mapstructure:"signal_confidence_cap"`
	MaxRecommendations      int     `mapstructure:"max_recommendations"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

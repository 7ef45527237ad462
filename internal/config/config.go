package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mbs-billing-assistant/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment, and defaults
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/mbs-billing-assistant/")

	viper.SetEnvPrefix("MBS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars cover the rest.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("database.path", "data/consultations.db")

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.default_ttl", "1h")
	viper.SetDefault("cache.max_memory_size", 1024)

	viper.SetDefault("catalog.data_path", "")

	viper.SetDefault("documents.output_dir", "data/documents")

	viper.SetDefault("engine.duration_base_confidence", 0.95)
	viper.SetDefault("engine.age_assessment_confidence", 0.70)
	viper.SetDefault("engine.signal_base_confidence", 0.35)
	viper.SetDefault("engine.signal_increment", 0.15)
	viper.SetDefault("engine.signal_confidence_cap", 0.85)
	viper.SetDefault("engine.max_recommendations", 5)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetEngineConfig returns recommendation engine configuration
func (m *Manager) GetEngineConfig() *domain.EngineConfig {
	return &m.config.Engine
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if config.Documents.OutputDir == "" {
		return fmt.Errorf("documents output directory is required")
	}

	engine := config.Engine
	for name, value := range map[string]float64{
		"duration_base_confidence":  engine.DurationBaseConfidence,
		"age_assessment_confidence": engine.AgeAssessmentConfidence,
		"signal_base_confidence":    engine.SignalBaseConfidence,
		"signal_confidence_cap":     engine.SignalConfidenceCap,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("engine.%s must be within [0,1], got %v", name, value)
		}
	}
	if engine.SignalIncrement < 0 {
		return fmt.Errorf("engine.signal_increment must be non-negative")
	}
	if engine.MaxRecommendations <= 0 {
		return fmt.Errorf("engine.max_recommendations must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}

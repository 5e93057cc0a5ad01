package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Metadata MetadataConfig `yaml:"metadata" mapstructure:"metadata"`
	TextGen  TextGenConfig  `yaml:"textgen" mapstructure:"textgen"`
	Agent    AgentConfig    `yaml:"agent" mapstructure:"agent"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// EngineConfig configures the relational engines.
type EngineConfig struct {
	// DatabaseURL is the primary Postgres connection string.
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// FallbackPath is an optional single-file sqlite database retried after
	// primary-engine failures. Empty disables the fallback engine.
	FallbackPath string `yaml:"fallback_path" mapstructure:"fallback_path"`
	MaxConns     int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns     int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// MetadataConfig configures the schema metadata index.
type MetadataConfig struct {
	// Path is the sqlite file backing the metadata index. Empty disables it;
	// the linker then works from the live catalog only.
	Path string `yaml:"path" mapstructure:"path"`
}

// TextGenConfig configures the text-generation backend.
type TextGenConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // "anthropic" or "ollama"
	Model             string  `yaml:"model" mapstructure:"model"`
	Key               string  `yaml:"key" mapstructure:"key"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AgentConfig configures tenant resolution and isolation behavior.
type AgentConfig struct {
	// DefaultTenant is the sentinel used when no tenant can be discovered.
	DefaultTenant string `yaml:"default_tenant" mapstructure:"default_tenant"`
	// TenantIsolation injects a tenant filter into every generated statement.
	TenantIsolation bool `yaml:"tenant_isolation" mapstructure:"tenant_isolation"`
	// TenantColumn is the column the isolation filter predicates on.
	TenantColumn string `yaml:"tenant_column" mapstructure:"tenant_column"`
	// ExternalSource marks a tenant-neutral database: table names are used
	// verbatim and no tenant filter is ever injected.
	ExternalSource bool `yaml:"external_source" mapstructure:"external_source"`
}

// ServerConfig configures the query HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("QUERYPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.max_conns", 10)
	v.SetDefault("engine.min_conns", 2)
	v.SetDefault("textgen.provider", "anthropic")
	v.SetDefault("textgen.model", "claude-haiku-4-5-20251001")
	v.SetDefault("textgen.base_url", "http://localhost:11434")
	v.SetDefault("textgen.max_tokens", 1024)
	v.SetDefault("textgen.requests_per_second", 2)
	v.SetDefault("textgen.timeout_secs", 60)
	v.SetDefault("agent.default_tenant", "default")
	v.SetDefault("agent.tenant_isolation", false)
	v.SetDefault("agent.tenant_column", "tenant_id")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration can support query processing.
func (c *Config) Validate() error {
	if c.Engine.DatabaseURL == "" && c.Engine.FallbackPath == "" {
		return eris.New("config: no engine configured (set engine.database_url or engine.fallback_path)")
	}
	switch c.TextGen.Provider {
	case "anthropic":
		if c.TextGen.Key == "" {
			return eris.New("config: textgen.key is required for the anthropic provider")
		}
	case "ollama":
	default:
		return eris.Errorf("config: unknown textgen provider %q", c.TextGen.Provider)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

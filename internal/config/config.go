package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Model    ModelConfig    `mapstructure:"model"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// ModelConfig describes the model asset and where it lives on disk.
type ModelConfig struct {
	Name           string   `mapstructure:"name"`
	URL            string   `mapstructure:"url"`
	AuthToken      string   `mapstructure:"auth_token"`
	FileName       string   `mapstructure:"file_name"`
	StorageDir     string   `mapstructure:"storage_dir"`
	CandidatePaths []string `mapstructure:"candidate_paths"`
	MinBytes       int64    `mapstructure:"min_bytes"`
	MaxBytes       int64    `mapstructure:"max_bytes"`
	SHA256         string   `mapstructure:"sha256"`
	MaxAttempts    int      `mapstructure:"max_attempts"`
	AutoDownload   bool     `mapstructure:"auto_download"`
}

// EngineConfig selects and configures the inference runtime.
type EngineConfig struct {
	Command   string   `mapstructure:"command"`
	ExtraArgs []string `mapstructure:"extra_args"`
	Mock      bool     `mapstructure:"mock"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "./data/pocketsage.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Path:   "./data/logs",
		},
		Model: ModelConfig{
			Name:        "gemma-3n-e2b",
			FileName:    "gemma-3n-e2b.task",
			StorageDir:  "./data/models",
			MaxBytes:    3221225472,
			MaxAttempts: 5,
		},
		Engine: EngineConfig{
			Command: "llama-cli",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.pocketsage")
	}

	v.SetEnvPrefix("POCKETSAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)

	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.url", "")
	v.SetDefault("model.auth_token", "")
	v.SetDefault("model.file_name", d.Model.FileName)
	v.SetDefault("model.storage_dir", d.Model.StorageDir)
	v.SetDefault("model.candidate_paths", []string{})
	v.SetDefault("model.min_bytes", 0)
	v.SetDefault("model.max_bytes", d.Model.MaxBytes)
	v.SetDefault("model.sha256", "")
	v.SetDefault("model.max_attempts", d.Model.MaxAttempts)
	v.SetDefault("model.auto_download", false)

	v.SetDefault("engine.command", d.Engine.Command)
	v.SetDefault("engine.extra_args", []string{})
	v.SetDefault("engine.mock", false)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

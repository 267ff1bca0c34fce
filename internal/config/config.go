// Package config handles configuration loading and management for DataMorph.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for DataMorph.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Server    ServerConfig    `mapstructure:"server"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	MaxTokens     int    `mapstructure:"max_tokens"`
	UseBedrock    bool   `mapstructure:"use_bedrock"`
	BedrockRegion string `mapstructure:"bedrock_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// DatabaseConfig holds the SQL engine connection settings.
type DatabaseConfig struct {
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	PingTimeout  time.Duration `mapstructure:"ping_timeout"`
	SampleRows   int           `mapstructure:"sample_rows"`
}

// WorkflowConfig holds the run tunables.
type WorkflowConfig struct {
	// MaxIterations bounds the remediation loop.
	MaxIterations int `mapstructure:"max_iterations"`
	// AIPassThreshold is the minimum AI-test pass rate, inclusive.
	AIPassThreshold float64 `mapstructure:"ai_pass_threshold"`
	// NumericTolerance is the absolute tolerance for numeric expectations.
	NumericTolerance float64 `mapstructure:"numeric_tolerance"`
	// AITestCap bounds the number of AI-authored tests per suite.
	AITestCap int `mapstructure:"ai_test_cap"`
}

// ArtifactsConfig selects and configures the artifact store.
type ArtifactsConfig struct {
	// Backend is "local" or "s3".
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	// Path is the SQLite database file, empty for the XDG default.
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// RetryConfig holds AI call retry settings.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, DATAMORPH_DSN)
// 2. Project config (.datamorph.yaml in current directory or parent)
// 3. User config (~/.config/datamorph/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("database.dsn", "DATAMORPH_DSN")
	v.BindEnv("artifacts.access_key", "DATAMORPH_S3_ACCESS_KEY")
	v.BindEnv("artifacts.secret_key", "DATAMORPH_S3_SECRET_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Database.DSN = expandEnv(cfg.Database.DSN)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Database.DSN = expandEnv(cfg.Database.DSN)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.bedrock_region", cfg.Anthropic.BedrockRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("database.dsn", cfg.Database.DSN)
	v.Set("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.Set("database.ping_timeout", cfg.Database.PingTimeout.String())
	v.Set("database.sample_rows", cfg.Database.SampleRows)
	v.Set("workflow.max_iterations", cfg.Workflow.MaxIterations)
	v.Set("workflow.ai_pass_threshold", cfg.Workflow.AIPassThreshold)
	v.Set("workflow.numeric_tolerance", cfg.Workflow.NumericTolerance)
	v.Set("workflow.ai_test_cap", cfg.Workflow.AITestCap)
	v.Set("artifacts.backend", cfg.Artifacts.Backend)
	v.Set("artifacts.dir", cfg.Artifacts.Dir)
	v.Set("artifacts.endpoint", cfg.Artifacts.Endpoint)
	v.Set("artifacts.bucket", cfg.Artifacts.Bucket)
	v.Set("artifacts.use_ssl", cfg.Artifacts.UseSSL)
	v.Set("audit.path", cfg.Audit.Path)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.Set("retry.base_delay", cfg.Retry.BaseDelay.String())
	v.Set("retry.max_delay", cfg.Retry.MaxDelay.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.bedrock_region", "us-east-1")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("database.dsn", "postgres://localhost:5432/datamorph?sslmode=disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.ping_timeout", "5s")
	v.SetDefault("database.sample_rows", 20)

	v.SetDefault("workflow.max_iterations", 5)
	v.SetDefault("workflow.ai_pass_threshold", 0.60)
	v.SetDefault("workflow.numeric_tolerance", 0.01)
	v.SetDefault("workflow.ai_test_cap", 5)

	v.SetDefault("artifacts.backend", "local")
	v.SetDefault("artifacts.dir", "")
	v.SetDefault("artifacts.endpoint", "")
	v.SetDefault("artifacts.bucket", "datamorph-artifacts")
	v.SetDefault("artifacts.use_ssl", true)

	v.SetDefault("audit.path", "")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "60s")
}

// getUserConfigDir returns the XDG config directory for DataMorph.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "datamorph")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "datamorph")
	}
	return filepath.Join(home, ".config", "datamorph")
}

// findProjectConfig searches for .datamorph.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".datamorph.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			MaxTokens:     8192,
			BedrockRegion: "us-east-1",
		},
		Database: DatabaseConfig{
			DSN:          "postgres://localhost:5432/datamorph?sslmode=disable",
			MaxOpenConns: 10,
			PingTimeout:  5 * time.Second,
			SampleRows:   20,
		},
		Workflow: WorkflowConfig{
			MaxIterations:    5,
			AIPassThreshold:  0.60,
			NumericTolerance: 0.01,
			AITestCap:        5,
		},
		Artifacts: ArtifactsConfig{
			Backend: "local",
			Bucket:  "datamorph-artifacts",
			UseSSL:  true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    60 * time.Second,
		},
	}
}

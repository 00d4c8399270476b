// Package config handles configuration loading for mcoda. It supports XDG
// config paths, workspace-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/mcoda/mcoda/pkg/models"
)

// Config holds all configuration for mcoda.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Ordering  OrderingConfig  `mapstructure:"ordering"`
	Docdex    DocdexConfig    `mapstructure:"docdex"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseAWSBedrock routes invocations through Bedrock instead of the
	// Anthropic API.
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// AgentsConfig maps commands to agent slugs and slugs to agent definitions.
type AgentsConfig struct {
	// Defaults maps a command name (e.g. "tasks-order") to an agent slug.
	Defaults map[string]string `mapstructure:"defaults"`
	// Registry maps an agent slug to its definition.
	Registry map[string]AgentConfig `mapstructure:"registry"`
}

// AgentConfig is one configured agent.
type AgentConfig struct {
	ID    string `mapstructure:"id"`
	Model string `mapstructure:"model"`
}

// OrderingConfig holds ordering engine settings.
type OrderingConfig struct {
	// StageOrder overrides the default stage precedence.
	StageOrder []string `mapstructure:"stage_order"`
}

// DocdexConfig holds planning document settings.
type DocdexConfig struct {
	// Policy is "", "require_any", or "require_sds_or_openapi".
	Policy string `mapstructure:"policy"`
}

// TelemetryConfig holds telemetry settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TUIConfig holds board display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// StageOrder resolves the configured stage precedence, falling back to the
// default when unset or when an entry is not a known stage.
func (c *Config) StageOrder() []models.Stage {
	if len(c.Ordering.StageOrder) == 0 {
		return models.DefaultStageOrder()
	}
	var out []models.Stage
	for _, s := range c.Ordering.StageOrder {
		stage, ok := models.ParseStage(s)
		if !ok {
			return models.DefaultStageOrder()
		}
		out = append(out, stage)
	}
	return out
}

// Load loads configuration from XDG paths, workspace overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (MCODA_*, ANTHROPIC_API_KEY)
// 2. Workspace config (.mcoda/config.yaml in current directory or parent)
// 3. User config (~/.config/mcoda/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if workspaceConfig := findWorkspaceConfig(); workspaceConfig != "" {
		wv := viper.New()
		wv.SetConfigFile(workspaceConfig)
		if err := wv.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(wv.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging workspace config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("MCODA")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.use_aws_bedrock", "CLAUDE_CODE_USE_BEDROCK")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references left in the key by the config file.
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
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

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("ordering.stage_order", cfg.Ordering.StageOrder)
	v.Set("docdex.policy", cfg.Docdex.Policy)
	v.Set("telemetry.enabled", cfg.Telemetry.Enabled)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetWorkspaceConfigPath returns the path to the workspace config file if it
// exists.
func GetWorkspaceConfigPath() string {
	return findWorkspaceConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("agents.defaults", map[string]string{})

	v.SetDefault("ordering.stage_order", []string{})

	v.SetDefault("docdex.policy", "")

	v.SetDefault("telemetry.enabled", true)

	v.SetDefault("tui.refresh_rate", "500ms")
}

// getUserConfigDir returns the XDG config directory for mcoda.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mcoda")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "mcoda")
	}
	return filepath.Join(home, ".config", "mcoda")
}

// findWorkspaceConfig searches for .mcoda/config.yaml in the current
// directory and parents.
func findWorkspaceConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".mcoda", "config.yaml")
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

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Telemetry: TelemetryConfig{Enabled: true},
		TUI:       TUIConfig{RefreshRate: 500 * time.Millisecond},
	}
}

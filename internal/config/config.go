package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the deployment configuration for the conversion service.
// Values come from defaults, an optional config.yaml in the working
// directory, and environment variables (highest precedence).
type Config struct {
	Port           string `mapstructure:"port"`
	Env            string `mapstructure:"env"`
	Mode           string `mapstructure:"mode"`
	WorkspaceRoot  string `mapstructure:"workspace_root"`
	StaticDir      string `mapstructure:"static_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`

	LLM LLMConfig `mapstructure:"llm"`
	Log LogConfig `mapstructure:"log"`
}

type LLMConfig struct {
	Provider     string  `mapstructure:"provider"`
	Model        string  `mapstructure:"model"`
	TokenCap     int     `mapstructure:"token_cap"`
	RPS          float64 `mapstructure:"rps"`
	Burst        int     `mapstructure:"burst"`
	Retries      int     `mapstructure:"retries"`
	CacheEntries int     `mapstructure:"cache_entries"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Conversion modes selected at deployment time.
const (
	ModeWholeProject = "whole-project"
	ModePerFile      = "per-file"
)

// Load builds the configuration from defaults, an optional config.yaml, and
// environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	bindEnv(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if wd, err := os.Getwd(); err == nil {
		v.AddConfigPath(wd)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	normalize(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", ":8080")
	v.SetDefault("env", "local")
	v.SetDefault("mode", ModeWholeProject)
	v.SetDefault("workspace_root", filepath.Join(os.TempDir(), "restack"))
	v.SetDefault("static_dir", "")
	v.SetDefault("max_upload_bytes", int64(32<<20))
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.token_cap", 12000)
	v.SetDefault("llm.rps", float64(0))
	v.SetDefault("llm.burst", 1)
	v.SetDefault("llm.retries", 2)
	v.SetDefault("llm.cache_entries", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("mode", "CONVERT_MODE")
	_ = v.BindEnv("workspace_root", "WORKSPACE_ROOT")
	_ = v.BindEnv("static_dir", "STATIC_DIR")
	_ = v.BindEnv("max_upload_bytes", "MAX_UPLOAD_BYTES")
	_ = v.BindEnv("llm.provider", "LLM_PROVIDER")
	_ = v.BindEnv("llm.model", "LLM_MODEL")
	_ = v.BindEnv("llm.token_cap", "LLM_TOKEN_CAP")
	_ = v.BindEnv("llm.rps", "LLM_RPS")
	_ = v.BindEnv("llm.burst", "LLM_BURST")
	_ = v.BindEnv("llm.retries", "LLM_RETRIES")
	_ = v.BindEnv("llm.cache_entries", "LLM_CACHE_ENTRIES")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "LOG_FORMAT")
	_ = v.BindEnv("log.output", "LOG_OUTPUT")
}

func normalize(cfg *Config) {
	cfg.Port = strings.TrimSpace(cfg.Port)
	if cfg.Port != "" && !strings.HasPrefix(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	cfg.Env = strings.TrimSpace(cfg.Env)
	cfg.Mode = strings.TrimSpace(strings.ToLower(cfg.Mode))
	cfg.WorkspaceRoot = strings.TrimSpace(cfg.WorkspaceRoot)
	cfg.StaticDir = strings.TrimSpace(cfg.StaticDir)
	cfg.LLM.Provider = strings.TrimSpace(strings.ToLower(cfg.LLM.Provider))
	cfg.LLM.Model = strings.TrimSpace(cfg.LLM.Model)
}

// Validate checks the deployment contract. It does not probe credentials;
// the provider catalog owns the eager credential check.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: port is required")
	}
	switch c.Mode {
	case ModeWholeProject, ModePerFile:
	default:
		return fmt.Errorf("config: unknown mode %q (want %q or %q)", c.Mode, ModeWholeProject, ModePerFile)
	}
	switch c.LLM.Provider {
	case "gemini", "groq":
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return errors.New("config: llm model is required")
	}
	if c.WorkspaceRoot == "" {
		return errors.New("config: workspace root is required")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: max upload bytes must be positive")
	}
	return nil
}

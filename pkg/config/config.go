// Package config loads the relay's YAML configuration, applies environment
// overrides and hot-reloads completion defaults.
package config

import (
	"strings"
	"time"

	"github.com/cexll/grokrelay/pkg/logging"
	"github.com/cexll/grokrelay/pkg/model"
	"github.com/cexll/grokrelay/pkg/store"
	"github.com/cexll/grokrelay/pkg/telemetry"
)

const (
	ProviderXAI       = "xai"
	ProviderAnthropic = "anthropic"

	BackendFile = "file"
	BackendS3   = "s3"

	defaultAddr        = ":8080"
	defaultModel       = "grok-4"
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
	defaultStoreRoot   = "chats"
)

// Config is the full relay configuration.
type Config struct {
	Server     ServerConfig         `yaml:"server"`
	Provider   model.ProviderConfig `yaml:"provider"`
	Completion CompletionConfig     `yaml:"completion"`
	Auth       AuthConfig           `yaml:"auth"`
	Store      StoreConfig          `yaml:"store"`
	Tools      ToolsConfig          `yaml:"tools"`
	Logging    logging.Config       `yaml:"logging"`
	Telemetry  telemetry.Config     `yaml:"telemetry"`

	// SourcePath is the file the config was read from, empty for defaults.
	SourcePath string `yaml:"-"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	StaticDir       string        `yaml:"static_dir"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CompletionConfig holds the per-request defaults a request may override.
type CompletionConfig struct {
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	UseTools    *bool    `yaml:"use_tools"`
	// MaxRounds caps provider rounds per request; zero is unlimited.
	MaxRounds int `yaml:"max_rounds"`
}

// ToolsEnabled reports the effective use_tools default.
func (c CompletionConfig) ToolsEnabled() bool {
	return c.UseTools == nil || *c.UseTools
}

// AuthConfig describes the single login identity. Secret and Password are
// read from the environment only.
type AuthConfig struct {
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"password_hash"`
	Password     string        `yaml:"-"`
	Secret       string        `yaml:"-"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	ExposeAPIKey bool          `yaml:"expose_api_key"`
}

// StoreConfig picks the chat persistence backend.
type StoreConfig struct {
	Backend string         `yaml:"backend"`
	Root    string         `yaml:"root"`
	S3      store.S3Config `yaml:"s3"`
}

// ToolsConfig tunes the builtin capabilities.
type ToolsConfig struct {
	SearchTimeout    time.Duration `yaml:"search_timeout"`
	SearchMaxResults int           `yaml:"search_max_results"`
	CodeCommand      []string      `yaml:"code_command"`
	CodeTimeout      time.Duration `yaml:"code_timeout"`
	DisableCode      bool          `yaml:"disable_code"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	temp := defaultTemperature
	useTools := true
	return &Config{
		Server:   ServerConfig{Addr: defaultAddr, ShutdownTimeout: 5 * time.Second},
		Provider: model.ProviderConfig{Name: ProviderXAI},
		Completion: CompletionConfig{
			Model:       defaultModel,
			Temperature: &temp,
			MaxTokens:   defaultMaxTokens,
			UseTools:    &useTools,
		},
		Auth:      AuthConfig{Username: "admin"},
		Store:     StoreConfig{Backend: BackendFile, Root: defaultStoreRoot},
		Tools:     ToolsConfig{SearchTimeout: 15 * time.Second, SearchMaxResults: 10, CodeTimeout: 10 * time.Second},
		Logging:   logging.Config{Level: "info", Format: "text", Output: "stderr"},
		Telemetry: telemetry.Config{ServiceName: "grokrelay"},
	}
}

// Normalize trims whitespace and fills zero values with defaults.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	def := Default()
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	c.Server.StaticDir = strings.TrimSpace(c.Server.StaticDir)
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	c.Server.CORSOrigins = trimAll(c.Server.CORSOrigins)

	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	if c.Provider.Name == "" {
		c.Provider.Name = def.Provider.Name
	}
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	c.Provider.BaseURL = strings.TrimSpace(c.Provider.BaseURL)

	c.Completion.Model = strings.TrimSpace(c.Completion.Model)
	if c.Completion.Model == "" {
		c.Completion.Model = def.Completion.Model
	}
	if c.Completion.MaxTokens == 0 {
		c.Completion.MaxTokens = def.Completion.MaxTokens
	}

	c.Auth.Username = strings.TrimSpace(c.Auth.Username)
	c.Auth.PasswordHash = strings.TrimSpace(c.Auth.PasswordHash)

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = def.Store.Backend
	}
	c.Store.Root = strings.TrimSpace(c.Store.Root)
	if c.Store.Root == "" {
		c.Store.Root = def.Store.Root
	}
	c.Store.S3.Bucket = strings.TrimSpace(c.Store.S3.Bucket)
	c.Store.S3.Region = strings.TrimSpace(c.Store.S3.Region)

	c.Tools.CodeCommand = trimAll(c.Tools.CodeCommand)
	c.Logging.Normalize()
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("GROKRELAY_ADDR", &cfg.Server.Addr)
	switch cfg.Provider.Name {
	case ProviderAnthropic:
		set("ANTHROPIC_API_KEY", &cfg.Provider.APIKey)
	default:
		set("XAI_API_KEY", &cfg.Provider.APIKey)
	}
	set("SECRET_KEY", &cfg.Auth.Secret)
	set("USERNAME", &cfg.Auth.Username)
	set("PASSWORD", &cfg.Auth.Password)
	if v, ok := lookup("S3_BUCKET"); ok && strings.TrimSpace(v) != "" {
		cfg.Store.S3.Bucket = strings.TrimSpace(v)
		cfg.Store.Backend = BackendS3
	}
	set("AWS_REGION", &cfg.Store.S3.Region)
	set("AWS_ACCESS_KEY_ID", &cfg.Store.S3.AccessKeyID)
	set("AWS_SECRET_ACCESS_KEY", &cfg.Store.S3.SecretAccessKey)
}

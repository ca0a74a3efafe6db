package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tappay-gateway/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	PublicURL       string        `yaml:"public_url"` // absolute base used to build the vendor return URL
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

type AuthConfig struct {
	HMACSecret string        `yaml:"hmac_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
}

type TapPayConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ConfigItem mirrors the name/value list the platform stores per plugin.
type ConfigItem struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

type PluginConfig struct {
	Active        bool         `yaml:"active"`
	Configuration []ConfigItem `yaml:"configuration"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	TapPay   TapPayConfig   `yaml:"tappay"`
	Plugin   PluginConfig   `yaml:"plugin"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. A .env file next to the process is
// loaded first (if present) so ${VAR} references in the YAML resolve to secrets.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse expands environment references, decodes and validates raw YAML.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.LeaseTTL <= 0 {
		cfg.Redis.LeaseTTL = 30 * time.Second
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = time.Hour
	}
	if cfg.TapPay.BaseURL == "" {
		cfg.TapPay.BaseURL = "https://api.tap.company/v2"
	}
	if cfg.TapPay.Timeout <= 0 {
		cfg.TapPay.Timeout = 20 * time.Second
	}
	cfg.Server.PublicURL = strings.TrimRight(cfg.Server.PublicURL, "/")

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Server.PublicURL == "" {
		return nil, errors.New("server.public_url is required")
	}
	if cfg.Auth.HMACSecret == "" {
		return nil, errors.New("auth.hmac_secret is required")
	}
	return &cfg, nil
}

// Lookup returns the raw value of a plugin configuration item.
func (p PluginConfig) Lookup(name string) (any, bool) {
	for _, it := range p.Configuration {
		if it.Name == name {
			return it.Value, true
		}
	}
	return nil, false
}

// String returns a configuration value as text; missing or null values yield "".
func (p PluginConfig) String(name string) string {
	v, ok := p.Lookup(name)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Bool accepts YAML booleans as well as "true"/"false" strings.
func (p PluginConfig) Bool(name string) bool {
	v, ok := p.Lookup(name)
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}

// GatewayConfig converts the plugin configuration list into the gateway's
// immutable configuration.
func (p PluginConfig) GatewayConfig(name string) model.GatewayConfig {
	return model.GatewayConfig{
		GatewayName:         name,
		AutoCapture:         p.Bool("auto-capture"),
		SupportedCurrencies: p.String("supported-currencies"),
		ConnectionParams: model.ConnectionParams{
			APIKey:   p.String("api-key"),
			SourceID: p.String("source-id"),
		},
	}
}

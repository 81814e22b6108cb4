// Package config provides YAML-based configuration loading with environment
// variable expansion and the configuration of the site map server.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/foomo/sitemap-mcp/wordpress"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load loads configuration from a YAML file with environment variable expansion.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expandedData := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// LoadOptional loads filename when it exists and only validates target
// otherwise.
func LoadOptional[T any](filename string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if validator, ok := any(target).(Validator); ok {
			if err := validator.Validate(); err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}
		}
		return nil
	}
	return Load(filename, target)
}

var (
	relayPattern    = regexp.MustCompile(`^https?://\S+$`)
	endpointPattern = regexp.MustCompile(`^/[a-zA-Z0-9/_-]*$`)
)

type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Crawler CrawlerConfig     `yaml:"crawler"`
	MCP     MCPConfig         `yaml:"mcp"`
}

func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Crawler.Validate(); err != nil {
		return fmt.Errorf("crawler: %w", err)
	}
	return c.MCP.Validate()
}

type ApplicationConfig struct {
	LogLevel zapcore.Level `yaml:"log_level"`
	HTTP     HTTPConfig    `yaml:"http"`
}

func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// RelayConfig is a CORS relay of the transport fallback chain. The target
// URL is appended query-escaped to Prefix.
type RelayConfig struct {
	Name         string `yaml:"name"`
	Prefix       string `yaml:"prefix"`
	ForwardsAuth bool   `yaml:"forwards_auth"`
}

func (c RelayConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Prefix, validation.Required, validation.Match(relayPattern)),
	)
}

type CrawlerConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	// Relays replaces the default relays when set.
	Relays          []RelayConfig `yaml:"relays"`
	DisableRelays   bool          `yaml:"disable_relays"`
	ContentSelector string        `yaml:"content_selector"`
}

func (c *CrawlerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Relays),
	)
}

// WordPressRelays returns the relays of the transport chain.
func (c *CrawlerConfig) WordPressRelays() []wordpress.Relay {
	if c.DisableRelays {
		return nil
	}
	if len(c.Relays) == 0 {
		return wordpress.DefaultRelays
	}
	out := make([]wordpress.Relay, 0, len(c.Relays))
	for _, r := range c.Relays {
		out = append(out, wordpress.Relay{Method: wordpress.Method(r.Name), Prefix: r.Prefix, ForwardsAuth: r.ForwardsAuth})
	}
	return out
}

type MCPConfig struct {
	Endpoint string `yaml:"endpoint"`
}

func (c *MCPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required, validation.Match(endpointPattern)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: zapcore.InfoLevel,
			HTTP:     HTTPConfig{Port: 8080},
		},
		SQLite: SQLiteConfig{Path: "./sitemap.db"},
		Crawler: CrawlerConfig{
			Timeout:         30 * time.Second,
			ContentSelector: "main",
		},
		MCP: MCPConfig{Endpoint: "/mcp"},
	}
}

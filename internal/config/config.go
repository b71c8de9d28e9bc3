package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/IntelDash/internal/present"
	"github.com/TobiSchelling/IntelDash/internal/taxonomy"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Feed         Feed         `yaml:"feed"`
	Taxonomy     Taxonomy     `yaml:"taxonomy"`
	Presentation Presentation `yaml:"presentation"`
	Server       Server       `yaml:"server"`
	Logging      Logging      `yaml:"logging"`
}

type Feed struct {
	Endpoint          string            `yaml:"endpoint" validate:"required,url"`
	Params            map[string]string `yaml:"params"`
	Timeout           time.Duration     `yaml:"timeout" validate:"gt=0"`
	MaxConcurrency    int               `yaml:"max_concurrency" validate:"min=1,max=64"`
	RequestsPerSecond float64           `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int               `yaml:"burst" validate:"gte=0"`
	UserAgent         string            `yaml:"user_agent"`
}

type Taxonomy struct {
	Groups      []Group             `yaml:"groups" validate:"required,min=1,dive"`
	Competitors map[string][]string `yaml:"competitors"`
	Categories  []Category          `yaml:"categories" validate:"dive"`
}

type Group struct {
	Name     string   `yaml:"name" validate:"required"`
	Entities []string `yaml:"entities" validate:"required,min=1,dive,required"`
}

// Category keywords may be empty; such a category never matches.
type Category struct {
	Label    string   `yaml:"label" validate:"required"`
	Keywords []string `yaml:"keywords"`
}

type Presentation struct {
	Title         string    `yaml:"title"`
	DefaultWindow string    `yaml:"default_window" validate:"omitempty,oneof=24h 7d 30d all"`
	Sections      []Section `yaml:"sections" validate:"dive"`
}

type Section struct {
	Name       string   `yaml:"name" validate:"required"`
	Categories []string `yaml:"categories" validate:"dive,required"`
}

type Server struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

type Logging struct {
	Level string `yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ConfigDir returns the XDG config directory for inteldash.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "inteldash")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > $INTELDASH_CONFIG > ~/.config/inteldash/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit == "" {
		explicit = getEnv("INTELDASH_CONFIG", "")
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'inteldash init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	return parse(DefaultConfigYAML)
}

// parse parses YAML bytes into a Config, applying defaults, then validates it.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Feed: Feed{
			Endpoint:          "https://news.google.com/rss/search",
			Timeout:           5 * time.Second,
			MaxConcurrency:    4,
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Presentation: Presentation{
			Title:         "Client Intelligence Dashboard",
			DefaultWindow: "7d",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. Cross-field invariants are checked when
// the taxonomy and layout are built.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// BuildTaxonomy converts the taxonomy section into an immutable snapshot.
func (c *Config) BuildTaxonomy() (*taxonomy.Taxonomy, error) {
	groups := make([]taxonomy.Group, len(c.Taxonomy.Groups))
	for i, g := range c.Taxonomy.Groups {
		groups[i] = taxonomy.Group{Name: g.Name, Entities: g.Entities}
	}
	cats := make([]taxonomy.Category, len(c.Taxonomy.Categories))
	for i, cat := range c.Taxonomy.Categories {
		cats[i] = taxonomy.Category{Label: cat.Label, Keywords: cat.Keywords}
	}
	tax, err := taxonomy.New(groups, c.Taxonomy.Competitors, cats)
	if err != nil {
		return nil, fmt.Errorf("building taxonomy: %w", err)
	}
	return tax, nil
}

// BuildLayout converts the presentation sections into a validated layout.
func (c *Config) BuildLayout(tax *taxonomy.Taxonomy) (*present.Layout, error) {
	sections := make([]present.Section, len(c.Presentation.Sections))
	for i, s := range c.Presentation.Sections {
		sections[i] = present.Section{Name: s.Name, Categories: s.Categories}
	}
	layout, err := present.NewLayout(sections, tax)
	if err != nil {
		return nil, fmt.Errorf("building layout: %w", err)
	}
	return layout, nil
}

// applyEnv overrides deployment settings from the environment. The
// taxonomy and sections only come from the file.
func (c *Config) applyEnv() {
	c.Feed.Endpoint = getEnv("INTELDASH_FEED_ENDPOINT", c.Feed.Endpoint)
	c.Feed.Timeout = getDuration("INTELDASH_FEED_TIMEOUT", c.Feed.Timeout)
	c.Feed.MaxConcurrency = getInt("INTELDASH_MAX_CONCURRENCY", c.Feed.MaxConcurrency)
	c.Server.Port = getInt("INTELDASH_PORT", c.Server.Port)
	c.Logging.Level = getEnv("INTELDASH_LOG_LEVEL", c.Logging.Level)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

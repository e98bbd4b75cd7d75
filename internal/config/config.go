package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"deskseed/internal/domain"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config models deskseed.yml.
type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"api"`
	Files struct {
		Path string `yaml:"path"`
	} `yaml:"files"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	// Run.AdminAssigns makes the administrator issue every assignment; by
	// default analysts assign items to themselves.
	Run struct {
		Seed         uint64 `yaml:"seed"`
		Items        int    `yaml:"items"`
		Taxonomy     int    `yaml:"taxonomy"`
		AdminAssigns bool   `yaml:"admin_assigns"`
	} `yaml:"run"`
	Pauses struct {
		Login      time.Duration `yaml:"login"`
		Create     time.Duration `yaml:"create"`
		Comment    time.Duration `yaml:"comment"`
		ArticleMin time.Duration `yaml:"article_min"`
		ArticleMax time.Duration `yaml:"article_max"`
	} `yaml:"pauses"`
	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	// DefaultPassword is used for actors listed without one.
	DefaultPassword string  `yaml:"default_password"`
	Actors          []Actor `yaml:"actors"`
}

type Actor struct {
	Username string      `yaml:"username"`
	Password string      `yaml:"password"`
	Role     domain.Role `yaml:"role"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config.api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config.api.timeout must be positive")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config.log.level: %w", err)
	}
	if c.Log.Format != FormatText && c.Log.Format != FormatJSON {
		return fmt.Errorf("config.log.format must be %q or %q", FormatText, FormatJSON)
	}
	if c.Run.Items < 0 {
		return fmt.Errorf("config.run.items must not be negative")
	}
	if c.Run.Taxonomy < 0 {
		return fmt.Errorf("config.run.taxonomy must not be negative")
	}
	p := c.Pauses
	for name, d := range map[string]time.Duration{
		"login": p.Login, "create": p.Create, "comment": p.Comment,
		"article_min": p.ArticleMin, "article_max": p.ArticleMax,
	} {
		if d < 0 {
			return fmt.Errorf("config.pauses.%s must not be negative", name)
		}
	}
	if p.ArticleMin > p.ArticleMax {
		return fmt.Errorf("config.pauses.article_min exceeds article_max")
	}
	if len(c.Actors) == 0 {
		return fmt.Errorf("config.actors is required")
	}
	seen := map[string]bool{}
	for i, a := range c.Actors {
		if strings.TrimSpace(a.Username) == "" {
			return fmt.Errorf("actor %d has empty username", i)
		}
		if !a.Role.Valid() {
			return fmt.Errorf("actor %s has unknown role %q", a.Username, a.Role)
		}
		if a.Password == "" && c.DefaultPassword == "" {
			return fmt.Errorf("actor %s has no password and no default_password is set", a.Username)
		}
		key := strings.ToLower(a.Username)
		if seen[key] {
			return fmt.Errorf("actor %s listed twice", a.Username)
		}
		seen[key] = true
	}
	return nil
}

// DomainActors returns the configured roster with default passwords applied.
func (c *Config) DomainActors() []domain.Actor {
	out := make([]domain.Actor, 0, len(c.Actors))
	for _, a := range c.Actors {
		pw := a.Password
		if pw == "" {
			pw = c.DefaultPassword
		}
		out = append(out, domain.Actor{Username: a.Username, Password: pw, Role: a.Role})
	}
	return out
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// FromYAML parses config from raw YAML bytes on top of the defaults and
// validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Load reads path, or returns the defaults when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	cfg, err := FromFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return cfg, nil
}

// Template returns the default config as YAML.
func Template() string {
	return defaultTemplate
}

const defaultTemplate = `api:
  base_url: http://localhost:5154/api
  timeout: 30s

files:
  path: files

log:
  level: debug
  format: text

run:
  seed: 0
  items: 200
  taxonomy: 20
  admin_assigns: false

pauses:
  login: 500ms
  create: 50ms
  comment: 20ms
  article_min: 20ms
  article_max: 80ms

journal:
  path: ""

metrics:
  addr: ""

default_password: Desk#Seed2024

actors:
  - {username: helen.ward@deskseed.local, role: Administrator}
  - {username: omar.haddad@deskseed.local, role: Analyst}
  - {username: priya.nair@deskseed.local, role: Analyst}
  - {username: tom.becker@deskseed.local, role: Employee}
  - {username: ines.moreau@deskseed.local, role: Employee}
  - {username: kenji.sato@deskseed.local, role: Employee}
`

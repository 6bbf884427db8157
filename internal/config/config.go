package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FelixSchausberger/trotd/internal/provider"
	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const appName = "trotd"

type General struct {
	MaxPerProvider    int      `yaml:"max_per_provider"`
	Timeout           string   `yaml:"timeout"`
	GlobalTimeout     string   `yaml:"global_timeout"`
	SlowWarn          string   `yaml:"slow_warn"`
	CacheTTL          string   `yaml:"cache_ttl"`
	CacheRetention    string   `yaml:"cache_retention"`
	MinStars          int      `yaml:"min_stars"`
	ASCIIOnly         bool     `yaml:"ascii_only"`
	ShowStarred       bool     `yaml:"show_starred"`
	MarkSeenOnShowAll bool     `yaml:"mark_seen_on_show_all"`
	Languages         []string `yaml:"languages"`
	ExcludeTopics     []string `yaml:"exclude_topics"`
}

type ProviderConfig struct {
	Enabled       bool     `yaml:"enabled"`
	BaseURL       string   `yaml:"base_url,omitempty"`
	Max           int      `yaml:"max,omitempty"`
	Languages     []string `yaml:"languages,omitempty"`
	ExcludeTopics []string `yaml:"exclude_topics,omitempty"`
	Token         string   `yaml:"token,omitempty"`
}

type Config struct {
	General   General                   `yaml:"general"`
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// Overrides carries command-line flags. Zero values leave the file's
// settings alone.
type Overrides struct {
	Providers     []string
	Languages     []string
	Max           int
	MinStars      int
	ExcludeTopics []string
}

func (c *Config) ProviderTimeout() time.Duration {
	return parseDuration(c.General.Timeout, 30*time.Second)
}

func (c *Config) GlobalTimeout() time.Duration {
	return parseDuration(c.General.GlobalTimeout, 45*time.Second)
}

func (c *Config) SlowWarn() time.Duration {
	return parseDuration(c.General.SlowWarn, 10*time.Second)
}

func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.General.CacheTTL, time.Hour)
}

func (c *Config) RetentionDuration() time.Duration {
	return parseDuration(c.General.CacheRetention, 30*24*time.Hour)
}

// parseDuration accepts Go durations plus an "Nd" day form, falling back to
// def on empty or invalid input.
func parseDuration(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// EnabledProviders lists enabled providers in display order.
func (c *Config) EnabledProviders() []provider.Kind {
	var out []provider.Kind
	for _, k := range provider.AllKinds() {
		if pc, ok := c.Providers[string(k)]; ok && pc.Enabled {
			out = append(out, k)
		}
	}
	return out
}

// Token returns the credential configured for kind.
func (c *Config) Token(kind provider.Kind) string {
	return c.Providers[string(kind)].Token
}

// ApplyOverrides folds command-line flags into the configuration.
func (c *Config) ApplyOverrides(o Overrides) error {
	if len(o.Providers) > 0 {
		want := make(map[provider.Kind]bool, len(o.Providers))
		for _, name := range o.Providers {
			k, err := provider.ParseKind(name)
			if err != nil {
				return err
			}
			want[k] = true
		}
		for _, k := range provider.AllKinds() {
			pc := c.Providers[string(k)]
			pc.Enabled = want[k]
			c.setProvider(k, pc)
		}
	}
	if len(o.Languages) > 0 {
		c.General.Languages = o.Languages
		// a language flag wins over per-provider lists
		for name, pc := range c.Providers {
			pc.Languages = nil
			c.Providers[name] = pc
		}
	}
	if o.Max > 0 {
		c.General.MaxPerProvider = o.Max
		for name, pc := range c.Providers {
			pc.Max = 0
			c.Providers[name] = pc
		}
	}
	if o.MinStars > 0 {
		c.General.MinStars = o.MinStars
	}
	if len(o.ExcludeTopics) > 0 {
		c.General.ExcludeTopics = append(c.General.ExcludeTopics, o.ExcludeTopics...)
	}
	return nil
}

func (c *Config) setProvider(k provider.Kind, pc ProviderConfig) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	c.Providers[string(k)] = pc
}

// Queries resolves one query per enabled provider.
func (c *Config) Queries() map[string]repo.Query {
	out := make(map[string]repo.Query)
	for _, k := range c.EnabledProviders() {
		pc := c.Providers[string(k)]
		q := repo.Query{
			BaseURL:       pc.BaseURL,
			Languages:     c.General.Languages,
			MinStars:      c.General.MinStars,
			ExcludeTopics: append(append([]string(nil), c.General.ExcludeTopics...), pc.ExcludeTopics...),
			MaxResults:    c.General.MaxPerProvider,
			Token:         pc.Token,
			Timeout:       c.ProviderTimeout(),
		}
		if len(pc.Languages) > 0 {
			q.Languages = pc.Languages
		}
		if pc.Max > 0 {
			q.MaxResults = pc.Max
		}
		out[string(k)] = q
	}
	return out
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// StateDir holds the cache database and the seen and starred files.
func StateDir() string {
	return filepath.Join(xdg.CacheHome, appName)
}

func CachePath() string {
	return filepath.Join(StateDir(), "cache.db")
}

func SeenPath() string {
	return filepath.Join(StateDir(), "seen.json")
}

func StarredPath() string {
	return filepath.Join(StateDir(), "starred.json")
}

// LoadEnvFiles reads .env from the working directory and from the config
// directory. Variables already set in the environment are kept.
func LoadEnvFiles() error {
	for _, path := range []string{".env", filepath.Join(xdg.ConfigHome, appName, ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv lets environment variables override tokens and the Gitea
// instance.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for _, k := range provider.AllKinds() {
		if tok := getenv("TROTD_" + strings.ToUpper(string(k)) + "_TOKEN"); tok != "" {
			pc := c.Providers[string(k)]
			pc.Token = tok
			c.setProvider(k, pc)
		}
	}
	if u := getenv("TROTD_GITEA_URL"); u != "" {
		pc := c.Providers[string(provider.KindGitea)]
		pc.BaseURL = u
		c.setProvider(provider.KindGitea, pc)
	}
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config file at path, or the default location when path is
// empty, and applies environment overrides. A missing file is created from
// the embedded defaults.
func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	cfg, err := loadFile(path, defaults)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, defaults *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Non-fatal: embedded defaults still apply
			_ = writeDefaults(path)
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := *defaults
	cfg.Providers = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	mergeDefaultProviders(&cfg, defaults)
	return &cfg, nil
}

// mergeDefaultProviders adds providers the user file does not mention.
func mergeDefaultProviders(cfg, defaults *Config) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig, len(defaults.Providers))
	}
	for name, pc := range defaults.Providers {
		if _, ok := cfg.Providers[name]; !ok {
			cfg.Providers[name] = pc
		}
	}
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	if cfg.General.MaxPerProvider < 0 {
		return fmt.Errorf("general: max_per_provider must not be negative")
	}
	if cfg.General.MinStars < 0 {
		return fmt.Errorf("general: min_stars must not be negative")
	}
	for field, v := range map[string]string{
		"timeout":         cfg.General.Timeout,
		"global_timeout":  cfg.General.GlobalTimeout,
		"slow_warn":       cfg.General.SlowWarn,
		"cache_ttl":       cfg.General.CacheTTL,
		"cache_retention": cfg.General.CacheRetention,
	} {
		if v != "" && parseDuration(v, -1) < 0 {
			return fmt.Errorf("general: %s: invalid duration %q", field, v)
		}
	}

	for name, pc := range cfg.Providers {
		k, err := provider.ParseKind(name)
		if err != nil || string(k) != name {
			return fmt.Errorf("providers: unknown provider %q (valid: github, gitlab, gitea)", name)
		}
		if pc.Max < 0 {
			return fmt.Errorf("provider %q: max must not be negative", name)
		}
		if pc.BaseURL == "" {
			continue
		}
		u, err := url.Parse(pc.BaseURL)
		if err != nil {
			return fmt.Errorf("provider %q: invalid base_url: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("provider %q: base_url scheme must be http or https, got %q", name, u.Scheme)
		}
	}
	return nil
}
